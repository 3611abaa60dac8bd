package utils

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// WriteWait bounds a single websocket write.
const WriteWait = 10 * time.Second

// SafeConn serializes writes to a websocket connection.
// Fiber's websocket implementation is not safe for concurrent writers.
type SafeConn struct {
	mu   sync.Mutex
	Conn *websocket.Conn
}

// NewSafeConn wraps c.
func NewSafeConn(c *websocket.Conn) *SafeConn {
	return &SafeConn{Conn: c}
}

// SendJSON sends a JSON payload to the wrapped connection. A peer that stops
// reading makes the write fail after WriteWait.
func (s *SafeConn) SendJSON(payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Conn.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
		return err
	}
	return s.Conn.WriteJSON(payload)
}

// Close closes the underlying connection. It does not wait for a pending
// write, which then fails.
func (s *SafeConn) Close() error {
	return s.Conn.Close()
}
