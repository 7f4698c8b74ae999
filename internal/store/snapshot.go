package store

import (
	"context"
	"fmt"

	"github.com/psidex/graphmind/internal/graph"
)

// DefaultDepth is how many levels below the principal topic a snapshot follows.
const DefaultDepth = 2

// BuildSnapshot assembles the graph of principal from the stored connections. Each
// idea links to its sub-topics, each sub-topic links to its own children, and every
// child is expanded in turn while depth lasts. Node ids are the labels; nodes appear in
// the order they are first reached and repeated edges are kept once.
func BuildSnapshot(ctx context.Context, st Store, principal string, depth int) (graph.Snapshot, error) {
	b := &snapshotBuilder{
		ctx:       ctx,
		st:        st,
		principal: principal,
		seenNode:  map[string]struct{}{},
		seenEdge:  map[graph.Edge]struct{}{},
		loaded:    map[string]Connections{},
		walked:    map[string]int{},
		nodes:     []graph.Node{},
		edges:     []graph.Edge{},
	}
	if err := b.walk(principal, depth); err != nil {
		return graph.Snapshot{}, err
	}
	return graph.Snapshot{Nodes: b.nodes, Edges: b.edges}, nil
}

type snapshotBuilder struct {
	ctx       context.Context
	st        Store
	principal string

	nodes    []graph.Node
	edges    []graph.Edge
	seenNode map[string]struct{}
	seenEdge map[graph.Edge]struct{}
	loaded   map[string]Connections

	// walked records the deepest completed walk of each idea. A walk no deeper than
	// that one adds nothing new.
	walked map[string]int
}

func (b *snapshotBuilder) load(idea string) (Connections, error) {
	if conns, ok := b.loaded[idea]; ok {
		return conns, nil
	}
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	conns, err := b.st.Load(b.ctx, b.principal, idea)
	if err != nil {
		return nil, fmt.Errorf("building %q: %w", b.principal, err)
	}
	b.loaded[idea] = conns
	return conns, nil
}

func (b *snapshotBuilder) walk(idea string, depth int) error {
	if d, ok := b.walked[idea]; ok && d >= depth {
		return nil
	}
	conns, err := b.load(idea)
	if err != nil {
		return err
	}
	for _, c := range conns {
		b.link(idea, c.Subtopic)
		for _, child := range c.Children {
			b.link(c.Subtopic, child)
			if depth > 0 {
				if err := b.walk(child, depth-1); err != nil {
					return err
				}
			}
		}
	}
	if d, ok := b.walked[idea]; !ok || depth > d {
		b.walked[idea] = depth
	}
	return nil
}

func (b *snapshotBuilder) link(from, to string) {
	b.addNode(from)
	b.addNode(to)
	e := graph.Edge{Source: from, Target: to}
	if _, ok := b.seenEdge[e]; ok {
		return
	}
	b.seenEdge[e] = struct{}{}
	b.edges = append(b.edges, e)
}

func (b *snapshotBuilder) addNode(label string) {
	if _, ok := b.seenNode[label]; ok {
		return
	}
	b.seenNode[label] = struct{}{}
	kind := graph.KindSubtopic
	if label == b.principal {
		kind = graph.KindTopic
	}
	b.nodes = append(b.nodes, graph.Node{ID: label, Label: label, Kind: kind})
}
