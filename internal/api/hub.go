package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abdghn/youapp-be-test/internal/logger"
	"github.com/abdghn/youapp-be-test/internal/metrics"
	"github.com/abdghn/youapp-be-test/internal/models"
)

const (
	defaultWriteWait = 10 * time.Second
	sendBuffer       = 16
)

// client is one websocket connection. Frames are queued on send and
// written by a single writer goroutine, so a peer that stops reading only
// ever stalls its own connection.
type client struct {
	userID    string
	conn      *websocket.Conn
	writeWait time.Duration
	send      chan any
	done      chan struct{}
	closeOnce sync.Once
}

// offer queues v without blocking and reports whether it was accepted.
func (c *client) offer(v any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- v:
		return true
	default:
		return false
	}
}

// deliver queues v, waiting for room unless the connection goes away.
func (c *client) deliver(v any) bool {
	select {
	case c.send <- v:
		return true
	case <-c.done:
		return false
	}
}

func (c *client) writePump() {
	for {
		select {
		case v := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteJSON(v); err != nil {
				logger.Error("websocket write error", err, logger.FieldKV("user_id", c.userID))
				// unblocks the read loop, which then unregisters the client
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub tracks websocket clients per user and pushes new messages to the
// receiver's open connections.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[*client]struct{}
	writeWait time.Duration
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{}), writeWait: defaultWriteWait}
}

func (h *Hub) add(userID string, conn *websocket.Conn) *client {
	c := &client{
		userID:    userID,
		conn:      conn,
		writeWait: h.writeWait,
		send:      make(chan any, sendBuffer),
		done:      make(chan struct{}),
	}
	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	metrics.IncWSConnections()
	logger.Info("websocket client connected",
		logger.FieldKV("user_id", userID),
		logger.FieldKV("remote_addr", conn.RemoteAddr().String()))
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if set, ok := h.clients[c.userID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			metrics.DecWSConnections()
		}
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
	c.close()
	logger.Info("websocket client disconnected", logger.FieldKV("user_id", c.userID))
}

// Notify queues msg for every connection of its receiver. It never blocks:
// a connection whose queue is full misses the push.
func (h *Hub) Notify(msg *models.Message) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[msg.ReceiverID]))
	for c := range h.clients[msg.ReceiverID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.offer(envelope{StatusCode: 200, Data: msg}) {
			logger.Warn("websocket push dropped", nil,
				logger.FieldKV("user_id", c.userID),
				logger.FieldKV("message_id", msg.ID))
			continue
		}
		metrics.IncWSNotification()
	}
}

// Connected reports how many connections userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
