package visual

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout() *Layout {
	return NewLayout("llama", 0, []TensorStat{
		{Name: "token_embd.weight", Elements: 1000},
		{Name: "blk.0.attn_q.weight", Elements: 100},
		{Name: "blk.0.attn_norm.weight", Elements: 100},
		{Name: "blk.1.attn_q.weight", Elements: 300},
		{Name: "blk.2.ffn_up.weight", Elements: 400},
		{Name: "output.weight", Elements: 500},
	})
}

func TestBuildPayloadNotLoaded(t *testing.T) {
	p := BuildPayload(false)
	assert.True(t, p.Empty())

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestBuildPayloadLoaded(t *testing.T) {
	p := BuildPayload(true)
	assert.False(t, p.Empty())
	assert.Len(t, p.Attention, 3)
	for _, row := range p.Attention {
		assert.Len(t, row, 3)
	}
	assert.Equal(t, []float64{0.5, 0.6, 0.7, 0.8, 0.9}, p.Weights)
	assert.Equal(t, []float64{1, 2, 3}, p.Embeddings[0])

	p.Weights[0] = 42
	assert.Equal(t, 0.5, BuildPayload(true).Weights[0], "payload slices must not be shared")
}

func TestNewLayout(t *testing.T) {
	l := testLayout()
	assert.Equal(t, 3, l.BlockCount)
	require.Len(t, l.Blocks, 3)
	assert.Equal(t, Block{Index: 0, Tensors: 2, Parameters: 200}, l.Blocks[0])
	assert.Equal(t, uint64(1500), l.OuterParameters)
	assert.Equal(t, uint64(2400), l.TotalParameters())
}

func TestNewLayoutHeaderBlockCount(t *testing.T) {
	l := NewLayout("llama", 4, []TensorStat{{Name: "blk.1.attn_q.weight", Elements: 10}})
	require.Len(t, l.Blocks, 4)
	assert.Equal(t, uint64(0), l.Blocks[0].Parameters)
	assert.Equal(t, uint64(10), l.Blocks[1].Parameters)
	assert.Equal(t, 3, l.Blocks[3].Index)
}

func TestBlockIndex(t *testing.T) {
	tests := []struct {
		name string
		idx  int
		ok   bool
	}{
		{"blk.12.attn_k.weight", 12, true},
		{"blk.0.ffn_down.weight", 0, true},
		{"token_embd.weight", 0, false},
		{"blk.x.attn_k.weight", 0, false},
		{"blk.3", 0, false},
	}
	for _, tt := range tests {
		idx, ok := blockIndex(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.idx, idx, tt.name)
	}
}

func TestLayerWeight(t *testing.T) {
	l := testLayout()

	w, err := LayerWeight(l, 0)
	require.NoError(t, err)
	assert.InDelta(t, 200.0/900.0, w, 1e-9)

	var sum float64
	for i := range l.Blocks {
		w, err := LayerWeight(l, i)
		require.NoError(t, err)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	_, err = LayerWeight(l, 3)
	assert.True(t, errors.Is(err, ErrLayerIndex))
	_, err = LayerWeight(nil, 0)
	assert.True(t, errors.Is(err, ErrLayerIndex))
}

func TestLinkWeight(t *testing.T) {
	l := testLayout()

	w, err := LinkWeight(l, 1)
	require.NoError(t, err)
	assert.InDelta(t, (300.0/900.0+400.0/900.0)/2, w, 1e-9)

	_, err = LinkWeight(l, 2)
	assert.True(t, errors.Is(err, ErrLayerIndex))
}

func TestLayerWeightsEmptyBlocks(t *testing.T) {
	l := NewLayout("llama", 2, nil)
	assert.Equal(t, []float64{0, 0}, l.LayerWeights())
}

func TestBuildGraph(t *testing.T) {
	g := BuildGraph(testLayout())

	require.Len(t, g.Nodes, 5)
	assert.Equal(t, "embed", g.Nodes[0].ID)
	assert.Equal(t, "blk.0", g.Nodes[1].ID)
	assert.Equal(t, "output", g.Nodes[4].ID)

	require.Len(t, g.Links, 4)
	for i, link := range g.Links {
		assert.Equal(t, g.Nodes[i].ID, link.Source)
		assert.Equal(t, g.Nodes[i+1].ID, link.Target)
	}
	assert.Equal(t, 1.0, g.Links[0].Value)
	assert.InDelta(t, (200.0/900.0+300.0/900.0)/2, g.Links[1].Value, 1e-9)
	assert.Len(t, g.Weights, 3)
}

func TestPlaceholderGraphLinksResolve(t *testing.T) {
	g := PlaceholderGraph()
	ids := make(map[string]bool)
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	for _, l := range g.Links {
		assert.True(t, ids[l.Source], "source %s", l.Source)
		assert.True(t, ids[l.Target], "target %s", l.Target)
	}
}

func TestTextPoints(t *testing.T) {
	layers := TextPoints("hé", "ok")
	require.Len(t, layers.Input, 2)
	assert.Equal(t, Point{X: 0, Y: 'h', Z: 0}, layers.Input[0])
	assert.Equal(t, Point{X: 1, Y: 'é', Z: 0}, layers.Input[1])
	assert.Equal(t, Point{X: 1, Y: 'k', Z: 1}, layers.Output[1])
}

func TestWeightPoints(t *testing.T) {
	points := WeightPoints([]float64{0.5, 0.6})
	assert.Equal(t, []Point{{X: 0, Y: 0.5}, {X: 1, Y: 0.6}}, points)
}

func TestEmbeddingPoints(t *testing.T) {
	points, err := EmbeddingPoints(BuildPayload(true).Embeddings)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 2, Y: 3, Z: 4}, points[1])

	_, err = EmbeddingPoints([][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestInspectMissingFile(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "missing.gguf"))
	assert.Error(t, err)
}

func TestInspectNotGGUF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.gguf")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a gguf header"), 0644))
	_, err := Inspect(path)
	assert.Error(t, err)
}
