package render

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/psidex/graphmind/internal/view"
)

type NodeAttributes struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size"`
	Label string  `json:"label"`
	Color string  `json:"color"`
}

type Node struct {
	Key        string         `json:"key"`
	Attributes NodeAttributes `json:"attributes"`
}

type EdgeAttributes struct {
	Size  float64 `json:"size"`
	Color string  `json:"color"`
}

type Edge struct {
	Key        string         `json:"key"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Attributes EdgeAttributes `json:"attributes"`
}

// SerializedGraph is graphology's JSON import format, as read by graph.import().
type SerializedGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Graphology renders a scene as graphology JSON, for sigma.js style front ends.
type Graphology struct{}

var _ Renderer = (*Graphology)(nil)

func NewGraphology() *Graphology {
	return &Graphology{}
}

func (g *Graphology) Extension() string {
	return ".json"
}

func (g *Graphology) Render(w io.Writer, scene view.Scene) error {
	return json.NewEncoder(w).Encode(Serialize(scene))
}

// Serialize converts a scene. Edge keys are their position in the scene.
func Serialize(scene view.Scene) SerializedGraph {
	sg := SerializedGraph{
		Nodes: make([]Node, 0, scene.Nodes.Len()),
		Edges: make([]Edge, 0, len(scene.Edges)),
	}
	for i, id := range scene.Nodes.IDs {
		sg.Nodes = append(sg.Nodes, Node{
			Key: id,
			Attributes: NodeAttributes{
				X:     scene.Nodes.X[i],
				Y:     scene.Nodes.Y[i],
				Size:  scene.Nodes.Size[i],
				Label: scene.Nodes.Text[i],
				Color: scene.Nodes.Color[i],
			},
		})
	}
	for i, e := range scene.Edges {
		sg.Edges = append(sg.Edges, Edge{
			Key:    strconv.Itoa(i),
			Source: e.Source,
			Target: e.Target,
			Attributes: EdgeAttributes{
				Size:  e.Width,
				Color: e.Color,
			},
		})
	}
	return sg
}
