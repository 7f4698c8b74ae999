// Package interaction computes what a pointer hover highlights: the hovered node, its
// direct neighbours and the edges between them.
package interaction

import (
	"github.com/psidex/graphmind/internal/graph"
	"github.com/psidex/graphmind/internal/lib"
)

// Highlight is derived from a snapshot and a hovered id. It is recomputed on every
// hover change and never patched.
type Highlight struct {
	HoveredID       string
	Hovered         bool
	ConnectedIDs    lib.Set
	ConnectedLabels []string
}

// None is the highlight when nothing is hovered.
func None() Highlight {
	return Highlight{
		ConnectedIDs:    lib.NewSet(),
		ConnectedLabels: []string{},
	}
}

// Compute collects the nodes one edge away from hoveredID. Labels follow the order
// in which the neighbours first appear in the edge list, and neighbours that resolve
// to no node contribute an id but no label.
func Compute(s graph.Snapshot, hoveredID string, hovered bool) Highlight {
	if !hovered {
		return None()
	}

	h := None()
	h.HoveredID = hoveredID
	h.Hovered = true

	index := s.Index()
	for _, e := range s.Edges {
		other, ok := e.Other(hoveredID)
		if !ok || !h.ConnectedIDs.AddNew(other) {
			continue
		}
		if i, exists := index[other]; exists {
			h.ConnectedLabels = append(h.ConnectedLabels, s.Nodes[i].Label)
		}
	}
	return h
}

// EdgeHighlighted reports whether the edge touches the hovered node.
func (h Highlight) EdgeHighlighted(e graph.Edge) bool {
	return h.Hovered && e.Touches(h.HoveredID)
}

// NodeHighlighted reports whether id is the hovered node or one of its neighbours.
func (h Highlight) NodeHighlighted(id string) bool {
	if !h.Hovered {
		return false
	}
	return id == h.HoveredID || h.ConnectedIDs.Contains(id)
}
