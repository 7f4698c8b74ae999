package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psidex/graphmind/internal/graph"
	"github.com/psidex/graphmind/internal/lib"
	"github.com/psidex/graphmind/internal/protocol"
)

// recorder turns every handler call into a line on events.
type recorder struct {
	events       chan string
	disconnected chan error
}

func newRecorder() *recorder {
	return &recorder{events: make(chan string, 32), disconnected: make(chan error, 1)}
}

func firstLabel(s *graph.Snapshot) string {
	if s == nil || len(s.Nodes) == 0 {
		return "-"
	}
	return s.Nodes[0].Label
}

func (r *recorder) OnKnowledges(topics []string) {
	r.events <- "knowledges " + strings.Join(topics, ",")
}

func (r *recorder) OnSubscribed(topic string, ack protocol.SubscribedPayload) {
	r.events <- fmt.Sprintf("subscribed %s %s", topic, firstLabel(ack.CurrentData))
}

func (r *recorder) OnTopicUpdate(topic string, s graph.Snapshot) {
	r.events <- fmt.Sprintf("update %s %s", topic, firstLabel(&s))
}

func (r *recorder) OnKnowledgeCreated(topic string) { r.events <- "created " + topic }
func (r *recorder) OnUnsubscribed(message string)   { r.events <- "unsubscribed " + message }
func (r *recorder) OnError(message string)          { r.events <- "error " + message }
func (r *recorder) OnDisconnect(err error)          { r.disconnected <- err }

func (r *recorder) next(t *testing.T) string {
	t.Helper()
	select {
	case e := <-r.events:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("no event")
		return ""
	}
}

func snapshotOf(label string) *graph.Snapshot {
	return &graph.Snapshot{Nodes: []graph.Node{{ID: label, Label: label}}, Edges: []graph.Edge{}}
}

// serve runs script against every connection made to the returned server.
func serve(t *testing.T, script func(c *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		script(c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func writeFrame(c *websocket.Conn, event string, payload any) {
	frame, _ := protocol.Encode(event, payload)
	_ = c.WriteMessage(websocket.TextMessage, frame)
}

func readEvent(c *websocket.Conn) (protocol.Message, error) {
	_, frame, err := c.ReadMessage()
	if err != nil {
		return protocol.Message{}, err
	}
	return protocol.Decode(frame)
}

func dial(t *testing.T, url string, h Handler) *Session {
	t.Helper()
	s, err := Dial(context.Background(), url, h, lib.DiscardLogger())
	require.NoError(t, err)
	return s
}

func TestSubscriptionsAreTaggedInOrder(t *testing.T) {
	url := serve(t, func(c *websocket.Conn) {
		for _, label := range []string{"A", "B"} {
			msg, err := readEvent(c)
			if err != nil || msg.Event != protocol.EventSubscribe {
				return
			}
			// Neither frame names its topic.
			writeFrame(c, protocol.EventSubscribed, protocol.SubscribedPayload{
				Message: "ok", CurrentData: snapshotOf(label),
			})
			writeFrame(c, protocol.EventTopicUpdate, protocol.TopicUpdatePayload{
				Update: snapshotOf(label + "'"),
			})
		}
		c.ReadMessage()
	})

	rec := newRecorder()
	s := dial(t, url, rec)
	defer s.Close()

	require.NoError(t, s.Subscribe("A"))
	require.NoError(t, s.Subscribe("B"))

	assert.Equal(t, "subscribed A A", rec.next(t))
	assert.Equal(t, "update A A'", rec.next(t))
	assert.Equal(t, "subscribed B B", rec.next(t))
	assert.Equal(t, "update B B'", rec.next(t))
	assert.Equal(t, "B", s.Acknowledged())
}

func TestExplicitTopicWins(t *testing.T) {
	url := serve(t, func(c *websocket.Conn) {
		readEvent(c)
		writeFrame(c, protocol.EventSubscribed, protocol.SubscribedPayload{Message: "ok", Topic: "A"})
		writeFrame(c, protocol.EventTopicUpdate, protocol.TopicUpdatePayload{Topic: "Other", Update: snapshotOf("x")})
		// An update without a snapshot is dropped.
		writeFrame(c, protocol.EventTopicUpdate, protocol.TopicUpdatePayload{Topic: "A"})
		writeFrame(c, protocol.EventUnsubscribed, protocol.UnsubscribedPayload{Message: "bye"})
		c.ReadMessage()
	})

	rec := newRecorder()
	s := dial(t, url, rec)
	defer s.Close()

	require.NoError(t, s.Subscribe("A"))
	assert.Equal(t, "subscribed A -", rec.next(t))
	assert.Equal(t, "update Other x", rec.next(t))
	assert.Equal(t, "unsubscribed bye", rec.next(t))
}

func TestUnsubscribe(t *testing.T) {
	url := serve(t, func(c *websocket.Conn) {
		readEvent(c)
		writeFrame(c, protocol.EventSubscribed, protocol.SubscribedPayload{Message: "ok"})
		msg, err := readEvent(c)
		if err != nil || msg.Event != protocol.EventUnsubscribe {
			return
		}
		writeFrame(c, protocol.EventUnsubscribed, protocol.UnsubscribedPayload{
			Message: "left " + msg.Payload.(*protocol.UnsubscribePayload).Topic,
		})
		// Untagged updates after unsubscribing belong to no topic.
		writeFrame(c, protocol.EventTopicUpdate, protocol.TopicUpdatePayload{Update: snapshotOf("late")})
		writeFrame(c, protocol.EventError, protocol.ErrorPayload{Message: "done"})
		c.ReadMessage()
	})

	rec := newRecorder()
	s := dial(t, url, rec)
	defer s.Close()

	require.NoError(t, s.Subscribe("A"))
	assert.Equal(t, "subscribed A -", rec.next(t))
	require.NoError(t, s.Unsubscribe("A"))
	assert.Empty(t, s.Acknowledged())
	assert.Equal(t, "unsubscribed left A", rec.next(t))
	assert.Equal(t, "error done", rec.next(t))
}

func TestKnowledgeCreatedRefreshesList(t *testing.T) {
	url := serve(t, func(c *websocket.Conn) {
		writeFrame(c, protocol.EventKnowledgeCreated, protocol.KnowledgeCreatedPayload{Topic: "Rome"})
		msg, err := readEvent(c)
		if err != nil || msg.Event != protocol.EventGetKnowledges {
			return
		}
		writeFrame(c, protocol.EventKnowledgesList, []string{"Greece", "Rome"})
		c.ReadMessage()
	})

	rec := newRecorder()
	s := dial(t, url, rec)
	defer s.Close()

	assert.Equal(t, "created Rome", rec.next(t))
	assert.Equal(t, "knowledges Greece,Rome", rec.next(t))
}

func TestMalformedFramesAreDropped(t *testing.T) {
	url := serve(t, func(c *websocket.Conn) {
		c.WriteMessage(websocket.TextMessage, []byte("not json"))
		c.WriteMessage(websocket.TextMessage, []byte(`{"event": "mystery"}`))
		c.WriteMessage(websocket.TextMessage, []byte(`{"event": "topic_update", "data": {"update": {"nodes": [{"label": "no id"}]}}}`))
		c.WriteMessage(websocket.TextMessage, []byte(`{"event": "knowledges_list", "data": {"a": 1}}`))
		writeFrame(c, protocol.EventError, protocol.ErrorPayload{Message: "still here"})
		c.ReadMessage()
	})

	rec := newRecorder()
	s := dial(t, url, rec)
	defer s.Close()

	assert.Equal(t, "error still here", rec.next(t))
	select {
	case e := <-rec.events:
		t.Fatalf("unexpected event %q", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDisconnect(t *testing.T) {
	t.Run("closed locally", func(t *testing.T) {
		url := serve(t, func(c *websocket.Conn) { c.ReadMessage() })
		rec := newRecorder()
		s := dial(t, url, rec)

		require.NoError(t, s.Close())
		assert.NoError(t, <-rec.disconnected)
		assert.ErrorIs(t, s.Subscribe("A"), ErrClosed)
	})

	t.Run("dropped by hub", func(t *testing.T) {
		url := serve(t, func(c *websocket.Conn) {})
		rec := newRecorder()
		s := dial(t, url, rec)

		select {
		case err := <-rec.disconnected:
			assert.Error(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("no disconnect")
		}
		<-s.Done()
		assert.ErrorIs(t, s.RequestKnowledges(), ErrClosed)
	})
}

func TestDialFails(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws", newRecorder(), lib.DiscardLogger())
	assert.Error(t, err)
}
