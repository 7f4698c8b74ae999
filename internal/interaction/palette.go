package interaction

import "github.com/psidex/graphmind/internal/graph"

type Palette struct {
	Accent             string
	EdgeBase           string
	Topic              string
	Subtopic           string
	EdgeWidth          float64
	HighlightEdgeWidth float64
}

func DefaultPalette() Palette {
	return Palette{
		Accent:             "#22C55E",
		EdgeBase:           "#CBD5E1",
		Topic:              "#E11D48",
		Subtopic:           "#4F46E5",
		EdgeWidth:          1,
		HighlightEdgeWidth: 2,
	}
}

type EdgeStyle struct {
	Color       string  `json:"color"`
	Width       float64 `json:"width"`
	Highlighted bool    `json:"highlighted"`
}

// NodeColor is the accent for highlighted nodes and otherwise depends on the kind.
func (p Palette) NodeColor(n graph.Node, h Highlight) string {
	if h.NodeHighlighted(n.ID) {
		return p.Accent
	}
	if n.Kind == graph.KindTopic {
		return p.Topic
	}
	return p.Subtopic
}

func (p Palette) EdgeStyle(e graph.Edge, h Highlight) EdgeStyle {
	if h.EdgeHighlighted(e) {
		return EdgeStyle{Color: p.Accent, Width: p.HighlightEdgeWidth, Highlighted: true}
	}
	return EdgeStyle{Color: p.EdgeBase, Width: p.EdgeWidth}
}
