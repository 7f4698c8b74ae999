// Package hub serves the knowledge store to viewers: a small HTTP API for listing,
// reading and creating knowledge, and a websocket feed that pushes topic snapshots to
// subscribed clients whenever the store changes.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/psidex/graphmind/internal/explorer"
	"github.com/psidex/graphmind/internal/graph"
	"github.com/psidex/graphmind/internal/protocol"
	"github.com/psidex/graphmind/internal/store"
)

// Submitter queues explorations, it is satisfied by *explorer.Jobs.
type Submitter interface {
	Submit(idea string, depth int) (explorer.Job, error)
}

type Config struct {
	// SnapshotDepth is passed to store.BuildSnapshot for every snapshot sent.
	SnapshotDepth  int
	AllowedOrigins []string
	// StaticDir is served at / when set.
	StaticDir string
}

type Hub struct {
	store    store.Store
	jobs     Submitter
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	registry *prometheus.Registry
	metrics  *metrics

	mu      *sync.RWMutex
	clients map[string]*client
}

// New creates a hub reading from st. jobs may be nil, in which case creation requests
// are refused.
func New(st store.Store, jobs Submitter, cfg Config, logger *slog.Logger) *Hub {
	reg := prometheus.NewRegistry()
	h := &Hub{
		store:    st,
		jobs:     jobs,
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  newMetrics(reg),
		mu:       &sync.RWMutex{},
		clients:  map[string]*client{},
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run keeps subscribers up to date with changes made to the store by other processes,
// if the store can report them. It blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	w, ok := h.store.(store.Watcher)
	if !ok {
		<-ctx.Done()
		return nil
	}
	return w.Watch(ctx, func(principal string) {
		h.TopicChanged(ctx, principal)
	})
}

// TopicChanged sends a fresh snapshot of principal to every client subscribed to it.
func (h *Hub) TopicChanged(ctx context.Context, principal string) {
	targets := h.subscribers(principal)
	if len(targets) == 0 {
		return
	}

	snap, err := store.BuildSnapshot(ctx, h.store, principal, h.cfg.SnapshotDepth)
	if err != nil {
		h.logger.Error("building snapshot", "topic", principal, "err", err)
		return
	}
	frame, err := protocol.Encode(protocol.EventTopicUpdate, protocol.TopicUpdatePayload{
		Topic:  principal,
		Update: &snap,
	})
	if err != nil {
		h.logger.Error("encoding update", "topic", principal, "err", err)
		return
	}

	h.logger.Debug("pushing update", "topic", principal, "clients", len(targets), "nodes", len(snap.Nodes))
	for _, c := range targets {
		h.send(c, protocol.EventTopicUpdate, frame)
	}
}

// JobDone records a finished exploration and tells every client the topic list may
// have changed.
func (h *Hub) JobDone(res explorer.Result) {
	outcome := "ok"
	switch {
	case errors.Is(res.Err, context.Canceled):
		outcome = "canceled"
	case res.Err != nil && res.Stats.Generated+res.Stats.Cached == 0:
		outcome = "failed"
	case res.Err != nil:
		outcome = "partial"
	}
	h.metrics.jobs.WithLabelValues(outcome).Inc()
	if outcome == "canceled" || outcome == "failed" {
		return
	}

	frame, err := protocol.Encode(protocol.EventKnowledgeCreated, protocol.KnowledgeCreatedPayload{Topic: res.Idea})
	if err != nil {
		h.logger.Error("encoding knowledge_created", "err", err)
		return
	}
	for _, c := range h.allClients() {
		h.send(c, protocol.EventKnowledgeCreated, frame)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	h.metrics.clients.Set(0)
}

// ClientCount is the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newClient(h, conn)
	h.register(c)
	c.logger.Info("client connected")

	go c.writePump()
	c.readPump()
	c.logger.Info("client disconnected")
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	h.metrics.clients.Inc()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.metrics.clients.Dec()
}

// send queues frame for c. A client whose buffer is full is disconnected.
func (h *Hub) send(c *client, event string, frame []byte) {
	h.mu.RLock()
	_, ok := h.clients[c.id]
	queued := false
	if ok {
		select {
		case c.send <- frame:
			queued = true
		default:
		}
	}
	h.mu.RUnlock()

	switch {
	case queued:
		h.metrics.framesOut.WithLabelValues(event).Inc()
	case ok:
		c.logger.Warn("send buffer full, dropping client")
		h.unregister(c)
	}
}

func (h *Hub) sendPayload(c *client, event string, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		c.logger.Error("encoding frame", "event", event, "err", err)
		return
	}
	h.send(c, event, frame)
}

func (h *Hub) sendError(c *client, message string) {
	h.sendPayload(c, protocol.EventError, protocol.ErrorPayload{Message: message})
}

func (h *Hub) sendTopics(c *client) {
	topics, err := h.store.Topics(context.Background())
	if err != nil {
		c.logger.Error("listing topics", "err", err)
		h.sendError(c, "could not list knowledges")
		return
	}
	h.sendPayload(c, protocol.EventKnowledgesList, topics)
}

// subscribe replaces the client's subscription with topic and answers with the
// topic's current snapshot, if it has one yet. Every subscribe is acknowledged, a
// snapshot that cannot be built is reported by an error frame after the ack.
func (h *Hub) subscribe(c *client, topic string) {
	h.mu.Lock()
	c.topic = topic
	h.mu.Unlock()

	ack := protocol.SubscribedPayload{
		Message: fmt.Sprintf("Subscribed to %s", topic),
		Topic:   topic,
	}
	snap, err := store.BuildSnapshot(context.Background(), h.store, topic, h.cfg.SnapshotDepth)
	if err == nil && !snap.Empty() {
		ack.CurrentData = &snap
	}
	h.sendPayload(c, protocol.EventSubscribed, ack)

	if err != nil {
		c.logger.Error("building snapshot", "topic", topic, "err", err)
		h.sendError(c, fmt.Sprintf("could not load %s", topic))
	}
}

func (h *Hub) unsubscribe(c *client, topic string) {
	h.mu.Lock()
	if topic == "" || c.topic == topic {
		c.topic = ""
	}
	h.mu.Unlock()
	h.sendPayload(c, protocol.EventUnsubscribed, protocol.UnsubscribedPayload{
		Message: fmt.Sprintf("Unsubscribed from %s", topic),
	})
}

func (h *Hub) subscribers(topic string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*client
	for _, c := range h.clients {
		if c.topic == topic {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) allClients() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// snapshot is used by the HTTP API, which answers 404 for topics not in the store.
func (h *Hub) snapshot(ctx context.Context, topic string) (graph.Snapshot, bool, error) {
	topics, err := h.store.Topics(ctx)
	if err != nil {
		return graph.Snapshot{}, false, err
	}
	found := false
	for _, t := range topics {
		if t == topic {
			found = true
			break
		}
	}
	if !found {
		return graph.Snapshot{}, false, nil
	}
	snap, err := store.BuildSnapshot(ctx, h.store, topic, h.cfg.SnapshotDepth)
	return snap, true, err
}
