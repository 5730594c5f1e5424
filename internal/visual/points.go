package visual

import "fmt"

// Point is a coordinate in the 3D scatter views.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TextLayers places input characters on the z=0 plane and output characters
// on z=1, with x the rune position and y the code point.
type TextLayers struct {
	Input  []Point `json:"input"`
	Output []Point `json:"output"`
}

// TextPoints builds the text layer view for one prompt/response pair.
func TextPoints(input, output string) TextLayers {
	return TextLayers{
		Input:  runePoints(input, 0),
		Output: runePoints(output, 1),
	}
}

func runePoints(s string, z float64) []Point {
	points := make([]Point, 0, len(s))
	i := 0
	for _, r := range s {
		points = append(points, Point{X: float64(i), Y: float64(r), Z: z})
		i++
	}
	return points
}

// WeightPoints spreads a weight vector along x.
func WeightPoints(weights []float64) []Point {
	points := make([]Point, len(weights))
	for i, w := range weights {
		points[i] = Point{X: float64(i), Y: w}
	}
	return points
}

// EmbeddingPoints takes the first three components of each embedding.
func EmbeddingPoints(embeddings [][]float64) ([]Point, error) {
	points := make([]Point, len(embeddings))
	for i, e := range embeddings {
		if len(e) < 3 {
			return nil, fmt.Errorf("embedding %d has %d components, need 3", i, len(e))
		}
		points[i] = Point{X: e[0], Y: e[1], Z: e[2]}
	}
	return points, nil
}
