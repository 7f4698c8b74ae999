package hub

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/psidex/graphmind/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// client is one websocket viewer. Its topic and send channel are guarded by the hub's
// mutex, send is closed when the client is unregistered.
type client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	topic  string
	logger *slog.Logger
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	id := uuid.NewString()
	return &client{
		id:     id,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: h.logger.With("client", id, "remote", conn.RemoteAddr().String()),
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read failed", "err", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.hub.sendError(c, "only text frames are supported")
			continue
		}
		c.handle(frame)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn("write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) handle(frame []byte) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		c.hub.metrics.framesIn.WithLabelValues("malformed").Inc()
		c.logger.Debug("rejected frame", "err", err)
		switch {
		case errors.Is(err, protocol.ErrUnknownEvent):
			c.hub.sendError(c, err.Error())
		default:
			c.hub.sendError(c, "malformed frame: "+err.Error())
		}
		return
	}
	c.hub.metrics.framesIn.WithLabelValues(msg.Event).Inc()

	switch msg.Event {
	case protocol.EventGetKnowledges:
		c.hub.sendTopics(c)
	case protocol.EventSubscribe:
		c.hub.subscribe(c, msg.Payload.(*protocol.SubscribePayload).Topic)
	case protocol.EventUnsubscribe:
		c.hub.unsubscribe(c, msg.Payload.(*protocol.UnsubscribePayload).Topic)
	default:
		c.hub.sendError(c, "event "+msg.Event+" is not accepted by the hub")
	}
}
