// Package layout places knowledge graph nodes on a plane and sizes them.
//
// Placement is radial and ranked by degree rather than simulated: nodes sit at equal
// angular steps in snapshot order, better connected nodes sit closer to the center,
// and every node gets a small jitter seeded by its id. The result depends only on the
// node and edge sets, so recomputing it for the same snapshot never moves anything.
package layout

import (
	"fmt"
	"math"

	"github.com/psidex/graphmind/internal/graph"
	"github.com/psidex/graphmind/internal/lib"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Config holds the radius and marker size bounds.
type Config struct {
	MinRadius float64 `yaml:"minRadius" json:"minRadius"`
	MaxRadius float64 `yaml:"maxRadius" json:"maxRadius"`
	MinSize   float64 `yaml:"minSize" json:"minSize"`
	MaxSize   float64 `yaml:"maxSize" json:"maxSize"`
}

func DefaultConfig() Config {
	return Config{
		MinRadius: 5,
		MaxRadius: 15,
		MinSize:   10,
		MaxSize:   30,
	}
}

// Validate rejects bounds that would place or size nodes outside of a sane range.
func (c Config) Validate() error {
	if c.MinRadius < 0 || c.MaxRadius < c.MinRadius {
		return fmt.Errorf("invalid radius bounds [%v, %v]", c.MinRadius, c.MaxRadius)
	}
	if c.MinSize <= 0 || c.MaxSize < c.MinSize {
		return fmt.Errorf("invalid size bounds [%v, %v]", c.MinSize, c.MaxSize)
	}
	return nil
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Layout is everything the renderer needs about node geometry, index-aligned with the
// snapshot's node sequence.
type Layout struct {
	Positions []Position
	Sizes     []float64
	Degrees   map[string]int
}

// Compute derives degrees, positions and sizes for a snapshot in one pass.
func (e *Engine) Compute(s graph.Snapshot) Layout {
	degrees := graph.Degrees(s.Nodes, s.Edges)
	return Layout{
		Positions: e.positions(s.Nodes, degrees),
		Sizes:     e.Sizes(s.Nodes, degrees),
		Degrees:   degrees,
	}
}

// Positions returns one position per node.
func (e *Engine) Positions(nodes []graph.Node, edges []graph.Edge) []Position {
	return e.positions(nodes, graph.Degrees(nodes, edges))
}

func (e *Engine) positions(nodes []graph.Node, degrees map[string]int) []Position {
	positions := make([]Position, 0, len(nodes))
	if len(nodes) == 0 {
		return positions
	}

	minDeg, maxDeg, _ := graph.DegreeRange(degrees)
	n := float64(len(nodes))

	for i, node := range nodes {
		angle := float64(i) / n * 2 * math.Pi
		r := e.Radius(degrees[node.ID], minDeg, maxDeg)
		offsetX, offsetY := lib.Jitter(node.ID)

		positions = append(positions, Position{
			X: r*math.Cos(angle) + offsetX,
			Y: r*math.Sin(angle) + offsetY,
		})
	}
	return positions
}

// Radius maps a degree to a distance from the center. The most connected nodes get
// MinRadius, the least connected MaxRadius, and with no degree variance everything
// sits at the midpoint.
func (e *Engine) Radius(degree, minDeg, maxDeg int) float64 {
	if maxDeg == minDeg {
		return (e.cfg.MinRadius + e.cfg.MaxRadius) / 2
	}
	frac := float64(maxDeg-degree) / float64(maxDeg-minDeg)
	return e.cfg.MinRadius + frac*(e.cfg.MaxRadius-e.cfg.MinRadius)
}

// Sizes interpolates each node's degree linearly between MinSize and MaxSize. Nodes
// missing from degrees count as degree zero. An empty degree map yields no sizes.
func (e *Engine) Sizes(nodes []graph.Node, degrees map[string]int) []float64 {
	minDeg, maxDeg, ok := graph.DegreeRange(degrees)
	if !ok {
		return []float64{}
	}

	sizes := make([]float64, len(nodes))
	for i, node := range nodes {
		if maxDeg == minDeg {
			sizes[i] = e.cfg.MinSize
			continue
		}
		frac := float64(degrees[node.ID]-minDeg) / float64(maxDeg-minDeg)
		sizes[i] = e.cfg.MinSize + frac*(e.cfg.MaxSize-e.cfg.MinSize)
	}
	return sizes
}
