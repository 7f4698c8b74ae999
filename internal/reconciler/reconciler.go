// Package reconciler owns the authoritative graph snapshot and the active topic.
//
// Snapshots only ever change by wholesale replacement. Data arriving for a topic that
// is no longer the active one is discarded, which is how a slow response for an
// abandoned selection is kept from overwriting the current view.
package reconciler

import (
	"sync"

	"github.com/psidex/graphmind/internal/graph"
)

type State int

const (
	StateEmpty State = iota
	StateLoaded
)

func (s State) String() string {
	if s == StateLoaded {
		return "loaded"
	}
	return "empty"
}

// Reconciler is safe for concurrent use. Every method is one atomic step, so readers
// never see a half-replaced snapshot.
type Reconciler struct {
	mu       *sync.RWMutex
	current  *graph.Snapshot
	topic    string
	hasTopic bool
	revision uint64
}

func New() *Reconciler {
	return &Reconciler{mu: &sync.RWMutex{}}
}

// Ingest builds a snapshot from raw data: nodes are deduplicated by id keeping the
// first occurrence, edges pass through untouched so an edge that arrives before its
// endpoint survives until a later snapshot supplies it, and each node's kind is set by
// comparing its label to activeTopic.
func Ingest(rawNodes []graph.Node, rawEdges []graph.Edge, activeTopic string) graph.Snapshot {
	nodes := graph.Dedupe(rawNodes)
	for i := range nodes {
		nodes[i].Kind = KindOf(nodes[i].Label, activeTopic)
	}
	edges := make([]graph.Edge, len(rawEdges))
	copy(edges, rawEdges)
	return graph.Snapshot{Nodes: nodes, Edges: edges}
}

// KindOf tags the node labelled after the active topic as the topic itself.
func KindOf(label, activeTopic string) graph.Kind {
	if activeTopic != "" && label == activeTopic {
		return graph.KindTopic
	}
	return graph.KindSubtopic
}

// SelectTopic makes topic the active one and returns the topic it replaced. It does
// not fetch anything.
func (r *Reconciler) SelectTopic(topic string) (previous string, hadPrevious bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, hadPrevious = r.topic, r.hasTopic
	r.topic, r.hasTopic = topic, true
	return previous, hadPrevious
}

func (r *Reconciler) ActiveTopic() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.topic, r.hasTopic
}

// IsActive reports whether data tagged with topic should still be applied.
func (r *Reconciler) IsActive(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasTopic && r.topic == topic
}

// Apply replaces the current snapshot with raw, ingested for topic. It returns false
// and leaves the state untouched when topic is not the active topic.
func (r *Reconciler) Apply(topic string, raw graph.Snapshot) (graph.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasTopic || r.topic != topic {
		return graph.Snapshot{}, false
	}
	s := Ingest(raw.Nodes, raw.Edges, topic)
	r.current = &s
	r.revision++
	return s, true
}

// Current returns the current snapshot. ok is false in the empty state.
func (r *Reconciler) Current() (graph.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return graph.Snapshot{}, false
	}
	return *r.current, true
}

// Revision increases by one for every applied snapshot.
func (r *Reconciler) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return StateEmpty
	}
	return StateLoaded
}
