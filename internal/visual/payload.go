// Package visual shapes the numbers behind the attention, weight, embedding
// and graph views. None of it is model interpretability: the payload values
// are fixed placeholders and the per-layer weights are derived from tensor
// parameter counts only.
package visual

// Payload is the data behind the heatmap and scatter views. A zero Payload
// encodes as an empty JSON object.
type Payload struct {
	Attention  [][]float64 `json:"attention,omitempty"`
	Weights    []float64   `json:"weights,omitempty"`
	Embeddings [][]float64 `json:"embeddings,omitempty"`
}

// Empty reports whether p carries no data.
func (p Payload) Empty() bool {
	return len(p.Attention) == 0 && len(p.Weights) == 0 && len(p.Embeddings) == 0
}

// BuildPayload returns the empty payload when no model is loaded and the
// fixed placeholder payload otherwise. Every call returns fresh slices.
func BuildPayload(loaded bool) Payload {
	if !loaded {
		return Payload{}
	}
	return Payload{
		Attention: [][]float64{
			{0.1, 0.2, 0.3},
			{0.2, 0.3, 0.4},
			{0.3, 0.4, 0.5},
		},
		Weights: []float64{0.5, 0.6, 0.7, 0.8, 0.9},
		Embeddings: [][]float64{
			{1.0, 2.0, 3.0},
			{2.0, 3.0, 4.0},
			{3.0, 4.0, 5.0},
		},
	}
}
