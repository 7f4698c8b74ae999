package view

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psidex/graphmind/internal/graph"
	"github.com/psidex/graphmind/internal/interaction"
	"github.com/psidex/graphmind/internal/layout"
	"github.com/psidex/graphmind/internal/lib"
	"github.com/psidex/graphmind/internal/protocol"
)

// gatedFetcher answers Get for a topic only once its gate is released.
type gatedFetcher struct {
	mu      *sync.Mutex
	gates   map[string]chan struct{}
	answers map[string]graph.Snapshot
	errs    map[string]error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		mu:      &sync.Mutex{},
		gates:   map[string]chan struct{}{},
		answers: map[string]graph.Snapshot{},
		errs:    map[string]error{},
	}
}

func (f *gatedFetcher) set(topic string, s graph.Snapshot, gated bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[topic] = s
	if gated {
		f.gates[topic] = make(chan struct{})
	}
}

func (f *gatedFetcher) release(topic string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.gates[topic])
}

func (f *gatedFetcher) List(ctx context.Context) ([]string, error) {
	return []string{"Rome", "Greece"}, nil
}

func (f *gatedFetcher) Get(ctx context.Context, name string) (graph.Snapshot, error) {
	f.mu.Lock()
	gate := f.gates[name]
	s, err := f.answers[name], f.errs[name]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return s, err
}

type recordingSubscriber struct {
	subscribed   []string
	unsubscribed []string
	requested    int
	err          error
}

func (r *recordingSubscriber) Subscribe(topic string) error {
	r.subscribed = append(r.subscribed, topic)
	return r.err
}

func (r *recordingSubscriber) Unsubscribe(topic string) error {
	r.unsubscribed = append(r.unsubscribed, topic)
	return nil
}

func (r *recordingSubscriber) RequestKnowledges() error {
	r.requested++
	return nil
}

func rome() graph.Snapshot {
	return graph.Snapshot{
		Nodes: []graph.Node{
			{ID: "rome", Label: "Rome"},
			{ID: "republic", Label: "Republic"},
			{ID: "empire", Label: "Empire"},
			{ID: "senate", Label: "Senate"},
			{ID: "rome", Label: "Duplicate"},
		},
		Edges: []graph.Edge{
			{Source: "rome", Target: "republic"},
			{Source: "rome", Target: "empire"},
			{Source: "republic", Target: "senate"},
			{Source: "empire", Target: "ghost"},
		},
	}
}

func newView(f Fetcher) *View {
	return New(layout.NewEngine(layout.DefaultConfig()), interaction.DefaultPalette(), f, lib.DiscardLogger())
}

func waitLoaded(t *testing.T, v *View) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return v.WaitLoaded(ctx)
}

func TestSceneFromFetcher(t *testing.T) {
	f := newGatedFetcher()
	f.set("Rome", rome(), false)
	v := newView(f)

	empty := v.Scene()
	assert.Empty(t, empty.Edges)
	assert.Equal(t, 0, empty.Nodes.Len())

	require.NoError(t, v.SelectTopic(context.Background(), "Rome"))
	require.NoError(t, waitLoaded(t, v))

	scene := v.Scene()
	assert.Equal(t, "Rome", scene.Topic)
	assert.False(t, scene.Loading)
	assert.Equal(t, uint64(1), scene.Revision)

	// Duplicate ids are dropped and the edge to a missing node is not drawn.
	assert.Equal(t, []string{"rome", "republic", "empire", "senate"}, scene.Nodes.IDs)
	assert.Equal(t, []string{"Rome", "Republic", "Empire", "Senate"}, scene.Nodes.Text)
	assert.Len(t, scene.Edges, 3)
	assert.Equal(t, []graph.Kind{graph.KindTopic, graph.KindSubtopic, graph.KindSubtopic, graph.KindSubtopic}, scene.Nodes.Kinds)

	p := interaction.DefaultPalette()
	assert.Equal(t, []string{p.Topic, p.Subtopic, p.Subtopic, p.Subtopic}, scene.Nodes.Color)
	for _, e := range scene.Edges {
		assert.Equal(t, p.EdgeBase, e.Color)
		assert.Equal(t, p.EdgeWidth, e.Width)
	}

	// Edge endpoints sit on their nodes.
	first := scene.Edges[0]
	assert.Equal(t, [2]float64{scene.Nodes.X[0], scene.Nodes.X[1]}, first.X)
	assert.Equal(t, [2]float64{scene.Nodes.Y[0], scene.Nodes.Y[1]}, first.Y)

	// rome and republic have degree 2, empire 1 (ghost is invalid), senate 1.
	assert.Equal(t, []float64{30, 30, 10, 10}, scene.Nodes.Size)
}

func TestHover(t *testing.T) {
	f := newGatedFetcher()
	f.set("Rome", rome(), false)
	v := newView(f)
	require.NoError(t, v.SelectTopic(context.Background(), "Rome"))
	require.NoError(t, waitLoaded(t, v))
	before := v.Scene()

	v.Hover("republic")
	scene := v.Scene()
	p := interaction.DefaultPalette()

	assert.Equal(t, HoverCard{
		Visible:   true,
		Label:     "Republic",
		Connected: []string{"Rome", "Senate"},
		Summary:   "Rome, Senate",
	}, scene.Hover)
	assert.Equal(t, []string{p.Accent, p.Accent, p.Subtopic, p.Accent}, scene.Nodes.Color)

	highlighted := 0
	for _, e := range scene.Edges {
		if e.Highlighted {
			highlighted++
			assert.Equal(t, p.Accent, e.Color)
			assert.Equal(t, p.HighlightEdgeWidth, e.Width)
		}
	}
	assert.Equal(t, 2, highlighted)

	// Hovering never moves or resizes anything.
	assert.Equal(t, before.Nodes.X, scene.Nodes.X)
	assert.Equal(t, before.Nodes.Size, scene.Nodes.Size)
	assert.Equal(t, before.Revision, scene.Revision)

	// An id missing from the nodes still follows its edges.
	v.Hover("ghost")
	assert.Equal(t, []string{"Empire"}, v.Scene().Hover.Connected)

	v.Hover("nobody")
	scene = v.Scene()
	assert.Equal(t, "nobody", scene.Hover.Label)
	assert.Equal(t, NoConnectedNodes, scene.Hover.Summary)
	assert.Empty(t, scene.Hover.Connected)

	v.Unhover()
	assert.False(t, v.Scene().Hover.Visible)
}

func TestStaleTopicIsDiscarded(t *testing.T) {
	f := newGatedFetcher()
	f.set("Rome", rome(), true)
	f.set("Greece", graph.Snapshot{Nodes: []graph.Node{{ID: "greece", Label: "Greece"}}}, false)
	v := newView(f)

	require.NoError(t, v.SelectTopic(context.Background(), "Rome"))
	require.NoError(t, v.SelectTopic(context.Background(), "Greece"))
	require.NoError(t, waitLoaded(t, v))
	require.Equal(t, []string{"greece"}, v.Scene().Nodes.IDs)

	changed := make(chan Scene, 4)
	v.OnChange(func(s Scene) { changed <- s })
	f.release("Rome")

	select {
	case s := <-changed:
		t.Fatalf("stale data changed the view: %v", s.Nodes.IDs)
	case <-time.After(100 * time.Millisecond):
	}
	scene := v.Scene()
	assert.Equal(t, "Greece", scene.Topic)
	assert.Equal(t, []string{"greece"}, scene.Nodes.IDs)
	assert.Equal(t, []graph.Kind{graph.KindTopic}, scene.Nodes.Kinds)
}

func TestFailureKeepsSnapshot(t *testing.T) {
	f := newGatedFetcher()
	f.set("Rome", rome(), false)
	v := newView(f)
	require.NoError(t, v.SelectTopic(context.Background(), "Rome"))
	require.NoError(t, waitLoaded(t, v))

	f.errs["Rome"] = errors.New("HTTP 503")
	require.NoError(t, v.SelectTopic(context.Background(), "Rome"))
	assert.EqualError(t, waitLoaded(t, v), "HTTP 503")

	scene := v.Scene()
	assert.False(t, scene.Loading)
	assert.Equal(t, "HTTP 503", scene.Err)
	assert.Equal(t, 4, scene.Nodes.Len())
}

// hookHandler runs fn, once, when a record with message msg is logged.
type hookHandler struct {
	msg  string
	once *sync.Once
	fn   func()
}

func (h hookHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h hookHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Message == h.msg {
		h.once.Do(h.fn)
	}
	return nil
}

func (h hookHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h hookHandler) WithGroup(string) slog.Handler    { return h }

func TestFailureNeverLandsOnNewerTopic(t *testing.T) {
	sub := &recordingSubscriber{}
	var v *View
	hook := hookHandler{msg: "loading failed", once: &sync.Once{}, fn: func() {
		require.NoError(t, v.SelectTopic(context.Background(), "Greece"))
	}}
	v = New(layout.NewEngine(layout.DefaultConfig()), interaction.DefaultPalette(), nil, slog.New(hook))
	v.Attach(sub)

	require.NoError(t, v.SelectTopic(context.Background(), "Rome"))
	v.fail("Rome", errors.New("Rome is broken"))

	scene := v.Scene()
	assert.Equal(t, "Greece", scene.Topic)
	assert.True(t, scene.Loading)
	assert.Empty(t, scene.Err)
	assert.Equal(t, []string{"Rome", "Greece"}, sub.subscribed)

	// A failure for the superseded topic arriving later is dropped as well.
	v.fail("Rome", errors.New("Rome is broken"))
	assert.Empty(t, v.Scene().Err)
	assert.True(t, v.Scene().Loading)
}

func TestSessionDrivenView(t *testing.T) {
	v := newView(nil)
	sub := &recordingSubscriber{}
	v.Attach(sub)

	require.NoError(t, v.SelectTopic(context.Background(), "Rome"))
	assert.Equal(t, []string{"Rome"}, sub.subscribed)
	assert.True(t, v.Scene().Loading)

	// Acks without data keep loading, updates for another topic are ignored.
	v.OnSubscribed("Rome", protocol.SubscribedPayload{Message: "ok"})
	v.OnTopicUpdate("Greece", rome())
	assert.True(t, v.Scene().Loading)

	s := rome()
	v.OnTopicUpdate("Rome", s)
	require.NoError(t, waitLoaded(t, v))
	assert.Equal(t, 4, v.Scene().Nodes.Len())

	v.OnError("unknown topic")
	assert.Equal(t, "unknown topic", v.Scene().Err)
	assert.Equal(t, 4, v.Scene().Nodes.Len())

	v.OnKnowledges([]string{"Greece", "Rome"})
	assert.Equal(t, []string{"Greece", "Rome"}, v.Topics())
	require.NoError(t, v.RefreshTopics(context.Background()))
	assert.Equal(t, 1, sub.requested)

	// Without a session and a fetcher there is nothing to load from.
	v.OnDisconnect(errors.New("eof"))
	assert.ErrorIs(t, v.SelectTopic(context.Background(), "Greece"), ErrNoSource)
}

func TestDetachUnsubscribesActiveTopic(t *testing.T) {
	v := newView(nil)
	sub := &recordingSubscriber{}
	v.Attach(sub)

	// Nothing selected, nothing to unsubscribe.
	require.NoError(t, v.Detach())
	assert.Empty(t, sub.unsubscribed)

	v.Attach(sub)
	require.NoError(t, v.SelectTopic(context.Background(), "Rome"))
	require.NoError(t, v.SelectTopic(context.Background(), "Greece"))
	require.NoError(t, v.Detach())
	assert.Equal(t, []string{"Greece"}, sub.unsubscribed)

	// Detached views have no session left to load from.
	require.NoError(t, v.Detach())
	assert.Len(t, sub.unsubscribed, 1)
	assert.ErrorIs(t, v.SelectTopic(context.Background(), "Rome"), ErrNoSource)
}

func TestSubscribeFailure(t *testing.T) {
	v := newView(nil)
	v.Attach(&recordingSubscriber{err: errors.New("broken pipe")})

	assert.Error(t, v.SelectTopic(context.Background(), "Rome"))
	scene := v.Scene()
	assert.False(t, scene.Loading)
	assert.Contains(t, scene.Err, "broken pipe")
}

func TestRelayoutIsPassedThrough(t *testing.T) {
	v := newView(newGatedFetcher())
	viewport := map[string]any{"zoom": 2.5, "center": []float64{1, 2}}
	v.Relayout(viewport)
	viewport["zoom"] = 1.0

	assert.Equal(t, 2.5, v.Scene().Viewport["zoom"])
}

func TestRefreshTopicsOverHTTP(t *testing.T) {
	v := newView(newGatedFetcher())
	require.NoError(t, v.RefreshTopics(context.Background()))
	assert.Equal(t, []string{"Rome", "Greece"}, v.Topics())
}
