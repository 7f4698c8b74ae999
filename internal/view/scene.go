package view

import "github.com/psidex/graphmind/internal/graph"

// EdgeTrace is one drawable edge segment.
type EdgeTrace struct {
	Source      string     `json:"source"`
	Target      string     `json:"target"`
	X           [2]float64 `json:"x"`
	Y           [2]float64 `json:"y"`
	Color       string     `json:"color"`
	Width       float64    `json:"width"`
	Highlighted bool       `json:"highlighted"`
}

// NodeTrace holds every node as parallel arrays, index-aligned with the snapshot's
// node sequence.
type NodeTrace struct {
	IDs   []string     `json:"ids"`
	X     []float64    `json:"x"`
	Y     []float64    `json:"y"`
	Size  []float64    `json:"size"`
	Color []string     `json:"color"`
	Text  []string     `json:"text"`
	Kinds []graph.Kind `json:"kinds"`
}

// Len is the number of nodes.
func (t NodeTrace) Len() int {
	return len(t.IDs)
}

// NoConnectedNodes is the hover card summary of a node without neighbours.
const NoConnectedNodes = "No connected nodes"

type HoverCard struct {
	Visible   bool     `json:"visible"`
	Label     string   `json:"label,omitempty"`
	Connected []string `json:"connected"`
	Summary   string   `json:"summary,omitempty"`
}

// Scene is a render-ready copy of the view. Nothing in it is shared with the View.
type Scene struct {
	Topic    string         `json:"topic"`
	Revision uint64         `json:"revision"`
	Edges    []EdgeTrace    `json:"edges"`
	Nodes    NodeTrace      `json:"nodes"`
	Hover    HoverCard      `json:"hover"`
	Loading  bool           `json:"loading"`
	Err      string         `json:"error,omitempty"`
	Viewport map[string]any `json:"viewport,omitempty"`
}
