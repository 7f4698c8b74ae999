// Package view ties the reconciler, the layout engine and the hover highlight together
// into render-ready scenes, and keeps them in step with the hub.
//
// Recomputation is explicit: a new snapshot recomputes degrees, positions and sizes,
// a hover change recomputes only the highlight. Both happen as single steps under the
// view's lock, so a Scene never mixes two snapshots.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/psidex/graphmind/internal/graph"
	"github.com/psidex/graphmind/internal/interaction"
	"github.com/psidex/graphmind/internal/layout"
	"github.com/psidex/graphmind/internal/protocol"
	"github.com/psidex/graphmind/internal/reconciler"
	"github.com/psidex/graphmind/internal/session"
)

// ErrNoSource is returned when a topic is selected with neither a session nor a
// fetcher to load it from.
var ErrNoSource = errors.New("no data source")

// Subscriber is the realtime side of the hub, a *session.Session.
type Subscriber interface {
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	RequestKnowledges() error
}

// Fetcher is the request/response side of the hub, a *knowledge.Client.
type Fetcher interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, name string) (graph.Snapshot, error)
}

type View struct {
	rec     *reconciler.Reconciler
	engine  *layout.Engine
	palette interaction.Palette
	fetcher Fetcher
	logger  *slog.Logger

	mu        *sync.Mutex
	sub       Subscriber
	snapshot  graph.Snapshot
	layout    layout.Layout
	revision  uint64
	hoveredID string
	hovered   bool
	highlight interaction.Highlight
	loading   bool
	err       string
	viewport  map[string]any
	topics    []string
	listeners []func(Scene)
	// changed is closed and replaced on every change, for WaitLoaded.
	changed chan struct{}
}

var _ session.Handler = (*View)(nil)

// New creates a view. fetcher may be nil if a session is always attached.
func New(engine *layout.Engine, palette interaction.Palette, fetcher Fetcher, logger *slog.Logger) *View {
	return &View{
		rec:       reconciler.New(),
		engine:    engine,
		palette:   palette,
		fetcher:   fetcher,
		logger:    logger,
		mu:        &sync.Mutex{},
		layout:    engine.Compute(graph.Snapshot{}),
		highlight: interaction.None(),
		topics:    []string{},
		changed:   make(chan struct{}),
	}
}

// Attach makes sub the preferred way of loading topics. A nil sub detaches, leaving the
// fetcher.
func (v *View) Attach(sub Subscriber) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sub = sub
}

// Detach unsubscribes the active topic and detaches the session, for teardown before
// the session is closed.
func (v *View) Detach() error {
	v.mu.Lock()
	sub := v.sub
	v.sub = nil
	topic, ok := v.rec.ActiveTopic()
	v.mu.Unlock()

	if sub == nil || !ok {
		return nil
	}
	if err := sub.Unsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing from %q: %w", topic, err)
	}
	return nil
}

// OnChange registers fn to be called with a fresh scene after every change. fn is
// called without the view's lock held and may call back into the view.
func (v *View) OnChange(fn func(Scene)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, fn)
}

// ActiveTopic is the last selected topic.
func (v *View) ActiveTopic() (string, bool) {
	return v.rec.ActiveTopic()
}

// SelectTopic makes topic the active one and starts loading it, through the session
// when one is attached and over HTTP otherwise. The current snapshot stays on screen
// until the new one arrives; anything that arrives for a previously selected topic is
// discarded.
func (v *View) SelectTopic(ctx context.Context, topic string) error {
	v.mu.Lock()
	v.rec.SelectTopic(topic)
	v.loading = true
	v.err = ""
	sub, fetcher := v.sub, v.fetcher
	v.mu.Unlock()
	v.notify()

	switch {
	case sub != nil:
		if err := sub.Subscribe(topic); err != nil {
			v.fail(topic, fmt.Errorf("subscribing to %q: %w", topic, err))
			return err
		}
	case fetcher != nil:
		go func() {
			s, err := fetcher.Get(ctx, topic)
			if err != nil {
				v.fail(topic, err)
				return
			}
			v.apply(topic, s)
		}()
	default:
		v.fail(topic, ErrNoSource)
		return ErrNoSource
	}
	return nil
}

// RefreshTopics asks for the list of topics again.
func (v *View) RefreshTopics(ctx context.Context) error {
	v.mu.Lock()
	sub, fetcher := v.sub, v.fetcher
	v.mu.Unlock()

	if sub != nil {
		return sub.RequestKnowledges()
	}
	if fetcher == nil {
		return ErrNoSource
	}
	topics, err := fetcher.List(ctx)
	if err != nil {
		return err
	}
	v.OnKnowledges(topics)
	return nil
}

// Topics is the last received list of topic names.
func (v *View) Topics() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string{}, v.topics...)
}

func (v *View) Hover(id string) {
	v.setHover(id, true)
}

func (v *View) Unhover() {
	v.setHover("", false)
}

func (v *View) setHover(id string, hovered bool) {
	v.mu.Lock()
	v.hoveredID, v.hovered = id, hovered
	v.highlight = interaction.Compute(v.snapshot, id, hovered)
	v.mu.Unlock()
	v.notify()
}

// Relayout stores the renderer's pan and zoom state. The view does not interpret it.
func (v *View) Relayout(viewport map[string]any) {
	v.mu.Lock()
	v.viewport = maps.Clone(viewport)
	v.mu.Unlock()
	v.notify()
}

// WaitLoaded blocks until the active topic has finished loading. It returns the load
// error, if any.
func (v *View) WaitLoaded(ctx context.Context) error {
	for {
		v.mu.Lock()
		loading, msg, changed := v.loading, v.err, v.changed
		v.mu.Unlock()

		if !loading {
			if msg != "" {
				return errors.New(msg)
			}
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (v *View) apply(topic string, raw graph.Snapshot) {
	v.mu.Lock()
	s, ok := v.rec.Apply(topic, raw)
	if !ok {
		v.mu.Unlock()
		v.logger.Debug("discarding data for inactive topic", "topic", topic)
		return
	}
	v.snapshot = s
	v.layout = v.engine.Compute(s)
	v.revision = v.rec.Revision()
	v.highlight = interaction.Compute(s, v.hoveredID, v.hovered)
	v.loading = false
	v.err = ""
	v.mu.Unlock()

	v.logger.Debug("applied snapshot", "topic", topic, "nodes", len(s.Nodes), "edges", len(s.Edges))
	v.notify()
}

// fail reports a failed load of topic. The current snapshot is kept. The active topic
// is checked under the view's lock so a failure can never land on a newer selection.
func (v *View) fail(topic string, err error) {
	v.mu.Lock()
	if !v.rec.IsActive(topic) {
		v.mu.Unlock()
		v.logger.Debug("discarding failure for inactive topic", "topic", topic, "err", err)
		return
	}
	v.loading = false
	v.err = err.Error()
	v.mu.Unlock()

	v.logger.Warn("loading failed", "topic", topic, "err", err)
	v.notify()
}

func (v *View) notify() {
	v.mu.Lock()
	close(v.changed)
	v.changed = make(chan struct{})
	listeners := append([]func(Scene){}, v.listeners...)
	var scene Scene
	if len(listeners) > 0 {
		scene = v.sceneLocked()
	}
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(scene)
	}
}

// Scene builds a render-ready copy of the current state.
func (v *View) Scene() Scene {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sceneLocked()
}

func (v *View) sceneLocked() Scene {
	s, l, h := v.snapshot, v.layout, v.highlight
	topic, _ := v.rec.ActiveTopic()

	scene := Scene{
		Topic:    topic,
		Revision: v.revision,
		Edges:    []EdgeTrace{},
		Nodes: NodeTrace{
			IDs:   make([]string, 0, len(s.Nodes)),
			X:     make([]float64, 0, len(s.Nodes)),
			Y:     make([]float64, 0, len(s.Nodes)),
			Size:  make([]float64, 0, len(s.Nodes)),
			Color: make([]string, 0, len(s.Nodes)),
			Text:  make([]string, 0, len(s.Nodes)),
			Kinds: make([]graph.Kind, 0, len(s.Nodes)),
		},
		Hover:    HoverCard{Connected: []string{}},
		Loading:  v.loading,
		Err:      v.err,
		Viewport: maps.Clone(v.viewport),
	}

	index := s.Index()
	for _, e := range graph.ValidEdges(s.Nodes, s.Edges) {
		from, to := l.Positions[index[e.Source]], l.Positions[index[e.Target]]
		style := v.palette.EdgeStyle(e, h)
		scene.Edges = append(scene.Edges, EdgeTrace{
			Source:      e.Source,
			Target:      e.Target,
			X:           [2]float64{from.X, to.X},
			Y:           [2]float64{from.Y, to.Y},
			Color:       style.Color,
			Width:       style.Width,
			Highlighted: style.Highlighted,
		})
	}

	minSize := v.engine.Config().MinSize
	for i, n := range s.Nodes {
		size := minSize
		if i < len(l.Sizes) {
			size = l.Sizes[i]
		}
		scene.Nodes.IDs = append(scene.Nodes.IDs, n.ID)
		scene.Nodes.X = append(scene.Nodes.X, l.Positions[i].X)
		scene.Nodes.Y = append(scene.Nodes.Y, l.Positions[i].Y)
		scene.Nodes.Size = append(scene.Nodes.Size, size)
		scene.Nodes.Color = append(scene.Nodes.Color, v.palette.NodeColor(n, h))
		scene.Nodes.Text = append(scene.Nodes.Text, n.Label)
		scene.Nodes.Kinds = append(scene.Nodes.Kinds, n.Kind)
	}

	if h.Hovered {
		label := h.HoveredID
		if n, ok := s.Lookup(h.HoveredID); ok {
			label = n.Label
		}
		scene.Hover = HoverCard{
			Visible:   true,
			Label:     label,
			Connected: append([]string{}, h.ConnectedLabels...),
			Summary:   NoConnectedNodes,
		}
		if len(h.ConnectedLabels) > 0 {
			scene.Hover.Summary = strings.Join(h.ConnectedLabels, ", ")
		}
	}
	return scene
}

func (v *View) OnKnowledges(topics []string) {
	v.mu.Lock()
	v.topics = append([]string{}, topics...)
	v.mu.Unlock()
	v.notify()
}

func (v *View) OnSubscribed(topic string, ack protocol.SubscribedPayload) {
	if ack.CurrentData == nil {
		v.logger.Debug("subscribed without data", "topic", topic)
		return
	}
	v.apply(topic, *ack.CurrentData)
}

func (v *View) OnTopicUpdate(topic string, s graph.Snapshot) {
	v.apply(topic, s)
}

func (v *View) OnKnowledgeCreated(topic string) {
	v.logger.Info("knowledge created", "topic", topic)
}

func (v *View) OnUnsubscribed(message string) {
	v.logger.Debug("unsubscribed", "message", message)
}

// OnError shows a hub error as a failed load of the active topic.
func (v *View) OnError(message string) {
	topic, ok := v.rec.ActiveTopic()
	if !ok {
		v.logger.Warn("hub error", "message", message)
		return
	}
	v.fail(topic, errors.New(message))
}

// OnDisconnect detaches the session, later selections fall back to the fetcher.
func (v *View) OnDisconnect(err error) {
	v.mu.Lock()
	v.sub = nil
	loading := v.loading
	v.mu.Unlock()

	if err == nil {
		return
	}
	if topic, ok := v.rec.ActiveTopic(); ok && loading {
		v.fail(topic, fmt.Errorf("connection lost: %w", err))
		return
	}
	v.logger.Warn("connection lost", "err", err)
}
