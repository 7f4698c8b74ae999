// Package session is the viewer side of the hub's realtime channel.
//
// A Session owns one websocket connection. It decodes every frame with the protocol
// package, drops anything malformed, and hands the rest to a Handler on a single
// goroutine, tagged with the topic it belongs to.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/psidex/graphmind/internal/graph"
	"github.com/psidex/graphmind/internal/lib"
	"github.com/psidex/graphmind/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 << 20
)

// ErrClosed is returned by the send methods once the session has ended.
var ErrClosed = errors.New("session closed")

// Handler receives decoded events. Calls are made one at a time from the session's
// read goroutine, so a slow handler holds up the session.
type Handler interface {
	OnKnowledges(topics []string)
	// OnSubscribed is called when the hub acknowledges a subscription. topic is the
	// subscription the ack answers.
	OnSubscribed(topic string, ack protocol.SubscribedPayload)
	// OnTopicUpdate delivers a replacement snapshot for topic.
	OnTopicUpdate(topic string, snapshot graph.Snapshot)
	// OnKnowledgeCreated is called when the hub finishes creating a topic. topic is
	// empty if the hub did not name it.
	OnKnowledgeCreated(topic string)
	OnUnsubscribed(message string)
	OnError(message string)
	// OnDisconnect is called once when the connection ends. err is nil after Close.
	OnDisconnect(err error)
}

type Session struct {
	ws      lib.ThreadSafeWebSocket
	handler Handler
	logger  *slog.Logger

	// subMu orders subscribe frames with their entries in pending.
	subMu   *sync.Mutex
	pending *lib.Queue[string]

	ackMu *sync.RWMutex
	acked string

	closing   chan struct{}
	done      chan struct{}
	closeOnce *sync.Once
}

// Dial connects to the hub websocket at url (e.g. "ws://localhost:8080/ws") and starts
// reading.
func Dial(ctx context.Context, url string, handler Handler, logger *slog.Logger) (*Session, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return newSession(c, handler, logger), nil
}

func newSession(c *websocket.Conn, handler Handler, logger *slog.Logger) *Session {
	s := &Session{
		ws:        lib.NewThreadSafeWebSocket(c, writeWait),
		handler:   handler,
		logger:    logger,
		subMu:     &sync.Mutex{},
		pending:   lib.NewQueue[string](),
		ackMu:     &sync.RWMutex{},
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		closeOnce: &sync.Once{},
	}
	go s.readPump()
	go s.pingPump()
	return s
}

// Done is closed once the read loop has exited and OnDisconnect has been called.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close ends the session and waits for the read loop to exit. It must not be called
// from a Handler method.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.ws.WriteControl(websocket.CloseMessage, msg)
		// The read loop may already have closed the conn after the peer echoed our
		// close frame.
		if err = s.ws.Close(); errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	<-s.done
	return err
}

func (s *Session) RequestKnowledges() error {
	return s.send(protocol.EventGetKnowledges, nil)
}

// Subscribe asks for topic. The previous subscription, if any, is superseded by the hub
// rather than torn down; stale data it still sends is tagged with the old topic.
func (s *Session) Subscribe(topic string) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.pending.Enqueue(topic)
	return s.send(protocol.EventSubscribe, protocol.SubscribePayload{Topic: topic})
}

func (s *Session) Unsubscribe(topic string) error {
	s.ackMu.Lock()
	if s.acked == topic {
		s.acked = ""
	}
	s.ackMu.Unlock()
	return s.send(protocol.EventUnsubscribe, protocol.UnsubscribePayload{Topic: topic})
}

// Acknowledged is the topic of the last acknowledged subscription.
func (s *Session) Acknowledged() string {
	s.ackMu.RLock()
	defer s.ackMu.RUnlock()
	return s.acked
}

func (s *Session) send(event string, payload any) error {
	select {
	case <-s.closing:
		return ErrClosed
	case <-s.done:
		return ErrClosed
	default:
	}

	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	if err := s.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("sending %s: %w", event, err)
	}
	return nil
}

func (s *Session) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.ws.WriteControl(websocket.PingMessage, nil); err != nil {
				s.logger.Debug("ping failed", "err", err)
				return
			}
		}
	}
}

func (s *Session) readPump() {
	var readErr error
	defer func() {
		s.ws.Close()
		s.handler.OnDisconnect(readErr)
		close(s.done)
	}()

	c := s.ws.Conn()
	c.SetReadLimit(maxMessageSize)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := s.ws.ReadMessage()
		if err != nil {
			select {
			case <-s.closing:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					readErr = fmt.Errorf("hub closed the connection: %w", err)
				} else {
					readErr = fmt.Errorf("reading from hub: %w", err)
				}
				s.logger.Warn("session disconnected", "err", err)
			}
			return
		}

		msg, err := protocol.Decode(frame)
		if err != nil {
			s.logger.Warn("dropping frame", "err", err)
			continue
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg protocol.Message) {
	switch p := msg.Payload.(type) {
	case []string:
		s.handler.OnKnowledges(p)

	case *protocol.SubscribedPayload:
		answered, ok := s.pending.Dequeue()
		topic := p.Topic
		if topic == "" {
			topic = answered
		}
		if topic == "" && !ok {
			s.logger.Warn("dropping unexpected subscribed ack")
			return
		}
		s.ackMu.Lock()
		s.acked = topic
		s.ackMu.Unlock()
		s.handler.OnSubscribed(topic, *p)

	case *protocol.TopicUpdatePayload:
		topic := p.Topic
		if topic == "" {
			topic = s.Acknowledged()
		}
		if topic == "" || p.Update == nil {
			s.logger.Debug("dropping untagged topic update")
			return
		}
		s.handler.OnTopicUpdate(topic, *p.Update)

	case *protocol.KnowledgeCreatedPayload:
		s.handler.OnKnowledgeCreated(p.Topic)
		if err := s.RequestKnowledges(); err != nil {
			s.logger.Warn("could not refresh knowledges", "err", err)
		}

	case *protocol.UnsubscribedPayload:
		s.handler.OnUnsubscribed(p.Message)

	case *protocol.ErrorPayload:
		s.handler.OnError(p.Message)

	default:
		s.logger.Debug("ignoring event", "event", msg.Event)
	}
}
