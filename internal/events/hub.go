// Package events fans out change notifications to live subscribers.
package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// HubConfig sizes the hub's queues
type HubConfig struct {
	BroadcastBuffer   int
	ClientBuffer      int
	HeartbeatInterval time.Duration
}

func (c *HubConfig) applyDefaults() {
	if c.BroadcastBuffer <= 0 {
		c.BroadcastBuffer = 100
	}
	if c.ClientBuffer <= 0 {
		c.ClientBuffer = 10
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
}

// Subscriber is one live stream attached to the hub
type Subscriber struct {
	hub          *Hub
	subscription Subscription
	send         chan Event
	closeOnce    sync.Once // Ensures send channel is closed only once
}

// Events returns the subscriber's event stream. It is closed when the
// subscriber is removed or the hub shuts down.
func (c *Subscriber) Events() <-chan Event {
	return c.send
}

// Close detaches the subscriber from the hub
func (c *Subscriber) Close() {
	c.hub.removeClient(c)
}

// Hub distributes events to subscribers in-process
type Hub struct {
	logger          *slog.Logger
	cfg             HubConfig
	clients         map[*Subscriber]bool
	mu              sync.RWMutex
	broadcast       chan Event
	metrics         *Metrics
	sequenceCounter atomic.Int64
	closed          atomic.Bool
	done            chan struct{}
	shutdownOnce    sync.Once
}

// NewHub creates a hub. Call Run to start delivering events.
func NewHub(cfg HubConfig, logger *slog.Logger) *Hub {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:    logger.With("component", "events"),
		cfg:       cfg,
		clients:   make(map[*Subscriber]bool),
		broadcast: make(chan Event, cfg.BroadcastBuffer),
		metrics:   NewMetrics(),
		done:      make(chan struct{}),
	}
}

// Run delivers events until ctx is cancelled, then shuts the hub down
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("event hub started",
		"broadcast_buffer", h.cfg.BroadcastBuffer,
		"client_buffer", h.cfg.ClientBuffer)

	heartbeat := time.NewTicker(h.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return nil

		case <-h.done:
			return nil

		case event := <-h.broadcast:
			h.deliver(event)

		case now := <-heartbeat.C:
			h.deliver(Event{Type: EventPing, Timestamp: now.UTC()})
		}
	}
}

// deliver stamps the event with a sequence number and fans it out
func (h *Hub) deliver(event Event) {
	event.SequenceID = h.sequenceCounter.Add(1)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.subscription.matches(event) {
			continue
		}
		// Non-blocking send - if client is slow, skip
		if !h.sendToClient(c, event) {
			h.metrics.IncEventsDropped()
			h.logger.Debug("client send queue full, event dropped",
				"event_type", event.Type,
				"project_id", c.subscription.ProjectID,
				"user_id", c.subscription.UserID)
		}
	}
}

// SendEvent queues an event for delivery (non-blocking)
func (h *Hub) SendEvent(event Event) error {
	if h.closed.Load() {
		return ErrHubClosed
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
		h.metrics.IncEventsPublished()
		return nil
	default:
		return ErrBroadcastFull
	}
}

// Subscribe attaches a new subscriber. The caller must Close it.
func (h *Hub) Subscribe(sub Subscription) (*Subscriber, error) {
	c := &Subscriber{
		hub:          h,
		subscription: sub,
		send:         make(chan Event, h.cfg.ClientBuffer),
	}

	// closed is checked under mu so a subscriber can't slip in after
	// Shutdown has closed the others.
	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.clients[c] = true
	count := len(h.clients)
	h.metrics.SetConnectedClients(int32(count))
	h.mu.Unlock()

	h.logger.Debug("client subscribed",
		"project_id", sub.ProjectID,
		"user_id", sub.UserID,
		"clients", count)
	return c, nil
}

// Metrics exposes the hub counters
func (h *Hub) Metrics() MetricsSnapshot {
	return h.metrics.GetSnapshot()
}

// Shutdown closes every subscriber stream. Further SendEvent calls fail.
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.logger.Info("shutting down event hub")

		h.mu.Lock()
		h.closed.Store(true)
		close(h.done)
		for c := range h.clients {
			c.closeOnce.Do(func() {
				close(c.send)
			})
		}
		h.clients = make(map[*Subscriber]bool)
		h.metrics.SetConnectedClients(0)
		h.mu.Unlock()
	})
}

// removeClient safely removes a subscriber from the hub
func (h *Hub) removeClient(c *Subscriber) {
	h.mu.Lock()
	delete(h.clients, c)
	h.metrics.SetConnectedClients(int32(len(h.clients)))
	h.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// sendToClient attempts to send an event to a subscriber (non-blocking)
// Returns true if successful, false if the queue is full
func (h *Hub) sendToClient(c *Subscriber, event Event) bool {
	select {
	case c.send <- event:
		h.metrics.IncEventsSent()
		return true
	default:
		return false
	}
}
