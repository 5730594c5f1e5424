package visual

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	gguf "github.com/gpustack/gguf-parser-go"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrLayerIndex is returned for a block index outside the model.
var ErrLayerIndex = errors.New("layer index out of range")

// Block summarizes the tensors of one transformer block ("blk.N.*").
type Block struct {
	Index      int    `json:"index"`
	Tensors    int    `json:"tensors"`
	Parameters uint64 `json:"parameters"`
}

// Layout is the architecture summary read from a GGUF header.
type Layout struct {
	Name            string  `json:"name,omitempty"`
	Architecture    string  `json:"architecture"`
	BlockCount      int     `json:"block_count"`
	EmbeddingLength int     `json:"embedding_length"`
	HeadCount       int     `json:"head_count"`
	Blocks          []Block `json:"blocks"`
	// Parameters outside the blocks (token embedding, output norm, lm head).
	OuterParameters uint64 `json:"outer_parameters"`
}

// TensorStat is the part of a tensor descriptor the layout needs.
type TensorStat struct {
	Name     string
	Elements uint64
}

// Inspect parses the GGUF header at path. Tensor data is not read.
func Inspect(path string) (*Layout, error) {
	f, err := gguf.ParseGGUFFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse gguf %s: %w", path, err)
	}

	arch := f.Architecture()
	tensors := make([]TensorStat, 0, len(f.TensorInfos))
	for _, ti := range f.TensorInfos {
		tensors = append(tensors, TensorStat{Name: ti.Name, Elements: ti.Elements()})
	}

	l := NewLayout(arch.Architecture, int(arch.BlockCount), tensors)
	l.Name = f.Metadata().Name
	l.EmbeddingLength = int(arch.EmbeddingLength)
	l.HeadCount = int(arch.AttentionHeadCount)
	return l, nil
}

// NewLayout groups tensors into blocks by their "blk.N." prefix. blockCount
// is taken from the header; when it is zero the count is inferred from the
// tensor names.
func NewLayout(architecture string, blockCount int, tensors []TensorStat) *Layout {
	byIndex := make(map[int]*Block)
	var outer uint64
	for _, t := range tensors {
		idx, ok := blockIndex(t.Name)
		if !ok {
			outer += t.Elements
			continue
		}
		b := byIndex[idx]
		if b == nil {
			b = &Block{Index: idx}
			byIndex[idx] = b
		}
		b.Tensors++
		b.Parameters += t.Elements
	}

	if blockCount == 0 {
		for idx := range byIndex {
			if idx+1 > blockCount {
				blockCount = idx + 1
			}
		}
	}

	blocks := make([]Block, blockCount)
	for i := range blocks {
		blocks[i].Index = i
		if b, ok := byIndex[i]; ok {
			blocks[i] = *b
		}
	}

	return &Layout{
		Architecture:    architecture,
		BlockCount:      blockCount,
		Blocks:          blocks,
		OuterParameters: outer,
	}
}

func blockIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "blk.")
	if !ok {
		return 0, false
	}
	num, _, ok := strings.Cut(rest, ".")
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(num)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// TotalParameters counts every tensor element in the model.
func (l *Layout) TotalParameters() uint64 {
	total := l.OuterParameters
	for _, b := range l.Blocks {
		total += b.Parameters
	}
	return total
}

// LayerWeights returns LayerWeight for every block.
func (l *Layout) LayerWeights() []float64 {
	params := make([]float64, len(l.Blocks))
	for i, b := range l.Blocks {
		params[i] = float64(b.Parameters)
	}
	sum := floats.Sum(params)
	if sum == 0 {
		return make([]float64, len(params))
	}
	floats.Scale(1/sum, params)
	return params
}

// LayerWeight is a placeholder signal for block i: its share of all block
// parameters. It says nothing about what the block has learned.
func LayerWeight(l *Layout, i int) (float64, error) {
	if l == nil || i < 0 || i >= len(l.Blocks) {
		return 0, fmt.Errorf("%w: %d", ErrLayerIndex, i)
	}
	return l.LayerWeights()[i], nil
}

// LinkWeight is a placeholder signal for the link from block i to i+1: the
// mean of the two layer weights.
func LinkWeight(l *Layout, i int) (float64, error) {
	if l == nil || i < 0 || i+1 >= len(l.Blocks) {
		return 0, fmt.Errorf("%w: link %d", ErrLayerIndex, i)
	}
	w := l.LayerWeights()
	return stat.Mean(w[i:i+2], nil), nil
}
