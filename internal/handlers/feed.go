package handlers

import (
	"context"
	"sync"

	"meter-backend/internal/events"
	"meter-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// feedBuffer is how many events may queue for one subscriber before it is
// dropped as too slow.
const feedBuffer = 16

// FeedConn is the write side of a feed subscriber.
type FeedConn interface {
	SendJSON(payload interface{}) error
	Close() error
}

type subscriber struct {
	conn      FeedConn
	send      chan events.MeterCreated
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { _ = s.conn.Close() })
}

// FeedHub keeps the websocket subscribers of the live meter feed. Each
// subscriber has its own queue and writer goroutine, so publishing never
// waits on a socket.
type FeedHub struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	logger *zap.Logger
}

func NewFeedHub(logger *zap.Logger) *FeedHub {
	return &FeedHub{
		subs:   make(map[string]*subscriber),
		logger: logger,
	}
}

// Register adds a subscriber under connID and starts its writer. The returned
// channel is closed once the writer has stopped and closed conn.
func (h *FeedHub) Register(connID string, conn FeedConn) <-chan struct{} {
	sub := &subscriber{
		conn: conn,
		send: make(chan events.MeterCreated, feedBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if old, ok := h.subs[connID]; ok {
		close(old.send)
	}
	h.subs[connID] = sub
	h.mu.Unlock()

	go h.writeLoop(connID, sub)
	return sub.done
}

// Unregister removes a subscriber and stops its writer
func (h *FeedHub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(connID)
}

// remove must be called with h.mu held.
func (h *FeedHub) remove(connID string) {
	if sub, ok := h.subs[connID]; ok {
		delete(h.subs, connID)
		close(sub.send)
	}
}

// Count returns the number of live subscribers
func (h *FeedHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// PublishMeterCreated queues event for every subscriber. A subscriber whose
// queue is full is dropped and its connection closed.
func (h *FeedHub) PublishMeterCreated(ctx context.Context, event events.MeterCreated) error {
	slow := make(map[string]*subscriber)

	h.mu.RLock()
	for id, sub := range h.subs {
		select {
		case sub.send <- event:
		default:
			slow[id] = sub
		}
	}
	h.mu.RUnlock()

	for id, sub := range slow {
		if !h.drop(id, sub) {
			continue
		}
		h.logger.Warn("dropping slow feed subscriber", zap.String("conn_id", id))
		sub.close()
	}
	return nil
}

// drop unregisters sub if it is still the subscriber under connID.
func (h *FeedHub) drop(connID string, sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[connID] != sub {
		return false
	}
	h.remove(connID)
	return true
}

func (h *FeedHub) writeLoop(connID string, sub *subscriber) {
	defer func() {
		sub.close()
		close(sub.done)
	}()

	for event := range sub.send {
		if err := sub.conn.SendJSON(event); err != nil {
			h.logger.Debug("dropping feed subscriber", zap.String("conn_id", connID), zap.Error(err))
			h.drop(connID, sub)
			return
		}
	}
}

// MeterFeedHandler streams meter.created events to the connection
func MeterFeedHandler(hub *FeedHub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		connID := uuid.New().String()
		conn := utils.NewSafeConn(c)

		if err := conn.SendJSON(fiber.Map{
			"event":   "connected",
			"message": "Subscribed to meter feed",
		}); err != nil {
			c.Close()
			return
		}

		// The connection is recycled once this handler returns, so wait for
		// the writer to let go of it.
		done := hub.Register(connID, conn)
		defer func() {
			hub.Unregister(connID)
			<-done
		}()

		// Clients only listen; reading detects the close.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					hub.logger.Debug("feed connection closed", zap.String("conn_id", connID), zap.Error(err))
				}
				return
			}
		}
	})
}

// WSUpgradeMiddleware rejects plain HTTP requests on websocket routes
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
