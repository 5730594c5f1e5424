package session

import "github.com/ThatCatDev/ggufdeck/internal/visual"

// The hooks below feed the visualization views. They never fail: a missing
// model or unreadable layout is logged and the zero value returned.

// Layout returns the loaded model's layout, if it could be read.
func (s *Session) Layout() (*visual.Layout, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layout, s.layout != nil
}

// Payload returns the heatmap and scatter data for the current state.
func (s *Session) Payload() visual.Payload {
	return visual.BuildPayload(s.Loaded())
}

// LayerWeight returns the placeholder weight of block i, or 0.
func (s *Session) LayerWeight(i int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.run == nil {
		s.log.Warn("layer weight requested with no model loaded")
		return 0
	}
	w, err := visual.LayerWeight(s.layout, i)
	if err != nil {
		s.log.WithError(err).Warn("layer weight unavailable")
		return 0
	}
	return w
}

// LinkWeight returns the placeholder weight of the link leaving block i, or 0.
func (s *Session) LinkWeight(i int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.run == nil {
		s.log.Warn("link weight requested with no model loaded")
		return 0
	}
	w, err := visual.LinkWeight(s.layout, i)
	if err != nil {
		s.log.WithError(err).Warn("link weight unavailable")
		return 0
	}
	return w
}

// Graph returns the 3D model graph. Without a model it is empty; without a
// readable layout it is the placeholder graph.
func (s *Session) Graph() visual.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.run == nil:
		return visual.Graph{Nodes: []visual.Node{}, Links: []visual.Link{}, Weights: map[string]float64{}}
	case s.layout == nil:
		return visual.PlaceholderGraph()
	default:
		return visual.BuildGraph(s.layout)
	}
}

// Nodes enumerates the graph nodes.
func (s *Session) Nodes() []visual.Node {
	return s.Graph().Nodes
}

// Links enumerates the graph links.
func (s *Session) Links() []visual.Link {
	return s.Graph().Links
}
