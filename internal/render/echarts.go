package render

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/psidex/graphmind/internal/view"
)

// ECharts renders a scene as a standalone go-echarts HTML page. Nodes are pinned to
// the scene's coordinates and the page can be panned and zoomed.
type ECharts struct {
	Title  string
	Width  string
	Height string
}

var _ Renderer = (*ECharts)(nil)

func NewECharts() *ECharts {
	return &ECharts{Title: "graphmind", Width: "100vw", Height: "100vh"}
}

func (e *ECharts) Extension() string {
	return ".html"
}

// echartsScale spreads the layout's coordinates, which span a few dozen units, over
// the canvas.
const echartsScale = 20

func (e *ECharts) Render(w io.Writer, scene view.Scene) error {
	page := components.NewPage()
	page.AddCharts(e.chart(scene))
	return page.Render(w)
}

func (e *ECharts) chart(scene view.Scene) *charts.Graph {
	title := e.Title
	if scene.Topic != "" {
		title = scene.Topic
	}

	g := charts.NewGraph()
	g.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: e.Title,
			Height:    e.Height,
			Width:     e.Width,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: scene.Hover.Summary,
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(false),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
	)

	// Nodes are named by their label text, which need not be unique, so links refer to
	// nodes by their index within the series.
	nodes := make([]opts.GraphNode, 0, scene.Nodes.Len())
	index := make(map[string]int, scene.Nodes.Len())
	for i, id := range scene.Nodes.IDs {
		index[id] = i
		nodes = append(nodes, opts.GraphNode{
			Name:       scene.Nodes.Text[i],
			X:          float32(scene.Nodes.X[i] * echartsScale),
			Y:          float32(scene.Nodes.Y[i] * echartsScale),
			SymbolSize: scene.Nodes.Size[i],
			ItemStyle:  &opts.ItemStyle{Color: scene.Nodes.Color[i]},
		})
	}

	var baseStyle, highlightStyle *view.EdgeTrace
	links := []opts.GraphLink{}
	highlightedNodes := []opts.GraphNode{}
	highlightedLinks := []opts.GraphLink{}
	overlayIndex := map[int]int{}
	overlay := func(node int) int {
		if j, ok := overlayIndex[node]; ok {
			return j
		}
		overlayIndex[node] = len(highlightedNodes)
		highlightedNodes = append(highlightedNodes, nodes[node])
		return overlayIndex[node]
	}
	for i, edge := range scene.Edges {
		src, srcOK := index[edge.Source]
		dst, dstOK := index[edge.Target]
		if !srcOK || !dstOK {
			continue
		}
		if edge.Highlighted {
			highlightStyle = &scene.Edges[i]
			highlightedLinks = append(highlightedLinks, opts.GraphLink{Source: overlay(src), Target: overlay(dst)})
			continue
		}
		baseStyle = &scene.Edges[i]
		links = append(links, opts.GraphLink{Source: src, Target: dst})
	}

	// A hovered scene is a still frame: the overlay series would not follow a pan of
	// the base series.
	roam := !scene.Hover.Visible

	g.AddSeries("graph", nodes, links, seriesOpts(baseStyle, roam, true)...)
	if len(highlightedLinks) > 0 {
		g.AddSeries("highlight", highlightedNodes, highlightedLinks, seriesOpts(highlightStyle, roam, false)...)
	}
	return g
}

func seriesOpts(style *view.EdgeTrace, roam, labels bool) []charts.SeriesOpts {
	so := []charts.SeriesOpts{
		charts.WithGraphChartOpts(opts.GraphChart{
			Layout: "none",
			Roam:   opts.Bool(roam),
		}),
		charts.WithLabelOpts(opts.Label{
			Show:     opts.Bool(labels),
			Color:    "black",
			Position: "bottom",
		}),
	}
	if style != nil {
		so = append(so, charts.WithLineStyleOpts(opts.LineStyle{
			Color: style.Color,
			Width: float32(style.Width),
		}))
	}
	return so
}
