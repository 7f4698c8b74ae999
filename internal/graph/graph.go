// Package graph holds the knowledge graph model shared by the layout, interaction and
// reconciliation code, plus the degree index they are all driven by.
package graph

import (
	"encoding/json"
	"fmt"
)

// Kind says whether a node is the selected knowledge domain itself or one of its
// sub-topics. It is derived during reconciliation, never sent by the data source.
type Kind string

const (
	KindTopic    Kind = "topic"
	KindSubtopic Kind = "subtopic"
)

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch Kind(s) {
	case KindTopic, KindSubtopic:
		*k = Kind(s)
	case "":
		*k = KindSubtopic
	default:
		return fmt.Errorf("unknown node type %q", s)
	}
	return nil
}

type Node struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label"`
	Kind  Kind   `json:"type,omitempty"`
}

// Edge is undirected for every adjacency and degree purpose despite the field names.
type Edge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// Touches reports whether id is one of the edge's endpoints.
func (e Edge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

// Other returns the endpoint opposite id. ok is false if id is not an endpoint.
func (e Edge) Other(id string) (other string, ok bool) {
	switch id {
	case e.Source:
		return e.Target, true
	case e.Target:
		return e.Source, true
	}
	return "", false
}

// Snapshot is the whole graph at one point in time. Once built it is never modified,
// new data replaces it wholesale.
type Snapshot struct {
	Nodes []Node `json:"nodes" validate:"dive"`
	Edges []Edge `json:"edges" validate:"dive"`
}

// Empty reports whether the snapshot has no nodes.
func (s Snapshot) Empty() bool {
	return len(s.Nodes) == 0
}

// Index maps each node id to its position in the node sequence. With duplicate ids the
// first position wins, matching Dedupe.
func (s Snapshot) Index() map[string]int {
	index := make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		if _, seen := index[n.ID]; !seen {
			index[n.ID] = i
		}
	}
	return index
}

// Lookup finds a node by id.
func (s Snapshot) Lookup(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Dedupe drops nodes whose id has already been seen, keeping the first occurrence and
// the original order.
func Dedupe(nodes []Node) []Node {
	seen := make(map[string]struct{}, len(nodes))
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}
