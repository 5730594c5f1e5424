package visual

import (
	"fmt"
	"math"
)

// Node is one sphere in the 3D model view.
type Node struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Color string  `json:"color"`
	Size  float64 `json:"size"`
}

// Link connects two nodes by ID.
type Link struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Value  float64 `json:"value"`
}

// Graph is the payload of the 3D model view.
type Graph struct {
	Nodes   []Node             `json:"nodes"`
	Links   []Link             `json:"links"`
	Weights map[string]float64 `json:"weights"`
}

const (
	helixRadius = 200.0
	helixRise   = 40.0
	baseSize    = 4.0
)

// BuildGraph lays the model out as a helix: the token embedding, one node
// per block, then the output head, each linked to the next.
func BuildGraph(l *Layout) Graph {
	g := Graph{Weights: make(map[string]float64)}
	weights := l.LayerWeights()

	g.Nodes = append(g.Nodes, Node{ID: "embed", Name: "Token embedding", Color: "#4e79a7", Size: baseSize * 2})
	for i, w := range weights {
		angle := float64(i) * math.Pi / 6
		id := fmt.Sprintf("blk.%d", i)
		g.Nodes = append(g.Nodes, Node{
			ID:    id,
			Name:  fmt.Sprintf("Block %d", i),
			X:     helixRadius * math.Cos(angle),
			Y:     float64(i+1) * helixRise,
			Z:     helixRadius * math.Sin(angle),
			Color: "#f28e2b",
			Size:  baseSize + w*float64(len(weights))*baseSize,
		})
		g.Weights[id] = w
	}
	g.Nodes = append(g.Nodes, Node{
		ID:    "output",
		Name:  "Output head",
		Y:     float64(len(weights)+1) * helixRise,
		Color: "#e15759",
		Size:  baseSize * 2,
	})

	for i := 0; i+1 < len(g.Nodes); i++ {
		value := 1.0
		if i > 0 && i < len(weights) {
			value, _ = LinkWeight(l, i-1)
		}
		g.Links = append(g.Links, Link{Source: g.Nodes[i].ID, Target: g.Nodes[i+1].ID, Value: value})
	}
	return g
}

// PlaceholderGraph is shown when the loaded model's header could not be read.
func PlaceholderGraph() Graph {
	return Graph{
		Nodes: []Node{
			{ID: "1", Name: "Frontal Lobe", X: 100, Y: 200, Z: 300, Color: "red", Size: 10},
			{ID: "2", Name: "Parietal Lobe", X: 200, Y: 300, Z: 400, Color: "green", Size: 10},
		},
		Links: []Link{
			{Source: "1", Target: "2", Value: 1},
		},
		Weights: map[string]float64{
			"Frontal Lobe":  0.8,
			"Parietal Lobe": 0.6,
		},
	}
}
