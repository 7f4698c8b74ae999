package lib

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ThreadSafeWebSocket wraps a websocket.Conn and allows many readers and writers to
// read/write the conn from goroutines without having to track safe access.
// This comes with the caveat that all writes block eachother, and similarly for reads.
// See https://pkg.go.dev/github.com/gorilla/websocket?utm_source=godoc#hdr-Concurrency.
type ThreadSafeWebSocket struct {
	c         *websocket.Conn
	writeMu   *sync.Mutex
	readMu    *sync.Mutex
	writeWait time.Duration
}

func NewThreadSafeWebSocket(c *websocket.Conn, writeWait time.Duration) ThreadSafeWebSocket {
	return ThreadSafeWebSocket{c, &sync.Mutex{}, &sync.Mutex{}, writeWait}
}

func (s ThreadSafeWebSocket) ReadMessage() (int, []byte, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	return s.c.ReadMessage()
}

func (s ThreadSafeWebSocket) WriteMessage(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeWait > 0 {
		_ = s.c.SetWriteDeadline(time.Now().Add(s.writeWait))
	}
	return s.c.WriteMessage(messageType, data)
}

// WriteControl sends a control frame, it is safe to call concurrently with the other
// methods.
func (s ThreadSafeWebSocket) WriteControl(messageType int, data []byte) error {
	wait := s.writeWait
	if wait <= 0 {
		wait = time.Second
	}
	return s.c.WriteControl(messageType, data, time.Now().Add(wait))
}

func (s ThreadSafeWebSocket) Conn() *websocket.Conn {
	return s.c
}

func (s ThreadSafeWebSocket) Close() error {
	return s.c.Close()
}
