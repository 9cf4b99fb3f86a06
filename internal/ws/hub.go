// Package ws implements the WebSocket hub and client management for canvas
// sessions. Every client owns one canvas; the hub only tracks membership.
package ws

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/metrics"
)

const registerBuffer = 64

// Hub tracks connected canvas sessions. The clients map is owned by the Run
// goroutine; other goroutines talk to it through channels.
type Hub struct {
	clients     map[*Client]time.Time // value is registration time
	maxSessions int
	register    chan *Client
	unregister  chan *Client
	shutdown    chan struct{}
	done        chan struct{}
	count       atomic.Int64
	log         *logrus.Logger
}

// NewHub creates a Hub that accepts up to maxSessions clients.
func NewHub(log *logrus.Logger, maxSessions int) *Hub {
	if maxSessions <= 0 {
		maxSessions = 1000
	}
	return &Hub{
		clients:     make(map[*Client]time.Time),
		maxSessions: maxSessions,
		register:    make(chan *Client, registerBuffer),
		unregister:  make(chan *Client, registerBuffer),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		log:         log,
	}
}

// drainTimeout is how long the hub waits for clients to flush after shutdown.
const drainTimeout = 3 * time.Second

// Run owns the session table until ctx ends or Shutdown is called, then
// drains every remaining session.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.drainClients()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.shutdown:
			return
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) add(client *Client) {
	if len(h.clients) >= h.maxSessions {
		h.log.WithField("max_sessions", h.maxSessions).Warn("session limit reached, dropping client")
		client.closeSend()
		return
	}

	h.clients[client] = time.Now()
	h.updateCount()
	h.log.WithFields(logrus.Fields{
		"session_id": client.SessionID,
		"total":      len(h.clients),
	}).Info("session registered")
}

func (h *Hub) remove(client *Client) {
	since, ok := h.clients[client]
	if !ok {
		return
	}

	delete(h.clients, client)
	client.closeSend()
	h.updateCount()
	h.log.WithFields(logrus.Fields{
		"session_id": client.SessionID,
		"duration":   time.Since(since).Round(time.Second).String(),
		"total":      len(h.clients),
	}).Info("session unregistered")
}

func (h *Hub) updateCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.WSConnections.Set(float64(len(h.clients)))
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	default:
		h.log.Warn("register channel full, dropping client")
		c.closeSend()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	default:
		// Run loop already exited; client cleanup happened in Run shutdown.
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Full reports whether the hub is at its session limit.
func (h *Hub) Full() bool {
	return h.ClientCount() >= h.maxSessions
}

// Shutdown drains every session and blocks until Run has returned.
func (h *Hub) Shutdown() {
	close(h.shutdown)
	<-h.done
}

// drainClients tells every session the server is stopping, waits up to
// drainTimeout for their send queues to empty and then closes them.
func (h *Hub) drainClients() {
	if len(h.clients) == 0 {
		return
	}

	h.log.WithField("clients", len(h.clients)).Info("draining canvas sessions")

	for client := range h.clients {
		_ = client.Emit(EventShutdown, map[string]string{"message": "server shutting down"})
	}

	deadline := time.Now().Add(drainTimeout)
	for h.pending() && time.Now().Before(deadline) {
		time.Sleep(drainPoll)
	}
	if h.pending() {
		h.log.Warn("session drain timed out, closing remaining sessions")
	}

	for client := range h.clients {
		client.closeSend()
		delete(h.clients, client)
	}
	h.updateCount()
}

const drainPoll = 50 * time.Millisecond

func (h *Hub) pending() bool {
	for client := range h.clients {
		if client.Pending() > 0 {
			return true
		}
	}
	return false
}
