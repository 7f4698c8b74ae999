package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/psidex/graphmind/internal/view"
)

// Vis renders a scene as an HTML page drawn by vis-network with physics off, so nodes
// stay where the layout put them.
type Vis struct{}

var _ Renderer = (*Vis)(nil)

func NewVis() *Vis {
	return &Vis{}
}

func (v *Vis) Extension() string {
	return ".html"
}

// visScale converts layout units to vis-network pixels.
const visScale = 40

type visNode struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size"`
	Color string  `json:"color"`
	Shape string  `json:"shape"`
}

type visEdge struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type visData struct {
	Title   string    `json:"title"`
	Summary string    `json:"summary"`
	Nodes   []visNode `json:"nodes"`
	Edges   []visEdge `json:"edges"`
}

func (v *Vis) Render(w io.Writer, scene view.Scene) error {
	data := visData{
		Title:   scene.Topic,
		Summary: scene.Hover.Summary,
		Nodes:   make([]visNode, 0, scene.Nodes.Len()),
		Edges:   make([]visEdge, 0, len(scene.Edges)),
	}
	for i, id := range scene.Nodes.IDs {
		data.Nodes = append(data.Nodes, visNode{
			ID:    id,
			Label: scene.Nodes.Text[i],
			X:     scene.Nodes.X[i] * visScale,
			Y:     scene.Nodes.Y[i] * visScale,
			// vis sizes dots by radius, the scene by diameter.
			Size:  scene.Nodes.Size[i] / 2,
			Color: scene.Nodes.Color[i],
			Shape: "dot",
		})
	}
	for _, e := range scene.Edges {
		data.Edges = append(data.Edges, visEdge{From: e.Source, To: e.Target, Color: e.Color, Width: e.Width})
	}

	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, visHTML, b)
	return err
}

// json.Marshal escapes <, > and &, so the data is safe inside the script tag.
const visHTML = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>graphmind</title>
    <style>
        * {
            margin: 0;
        }
        #graph {
            width: 100vw;
            height: 100vh;
        }
        #summary {
            position: absolute;
            top: 8px;
            left: 8px;
            font-family: sans-serif;
        }
    </style>
    <script type="text/javascript"
      src="https://unpkg.com/vis-network/standalone/umd/vis-network.min.js"></script>
  </head>
  <body>
    <div id="summary"></div>
    <div id="graph"></div>
    <script type="text/javascript">
const scene = %s;

document.title = scene.title || "graphmind";
document.getElementById("summary").textContent = scene.summary;

new vis.Network(
  document.getElementById("graph"),
  {nodes: new vis.DataSet(scene.nodes), edges: new vis.DataSet(scene.edges)},
  {physics: {enabled: false}, nodes: {font: {vadjust: -4}}, interaction: {hover: true}}
);
    </script>
  </body>
</html>
`
