// Package websocket pushes change notifications to connected clients in real
// time. Clients subscribe to event topics (query.created, query.updated,
// query.deleted); the Pusher feeds the hub from the Redis notifier.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// Hub configuration constants.
const (
	defaultBroadcastBufferSize = 256
)

// Message represents a WebSocket message sent to clients.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Hub manages all WebSocket connections and topic subscriptions.
type Hub struct {
	// clients holds all connected clients.
	clients map[*Client]bool

	// topics maps event topics to their subscribed clients.
	topics map[string]map[*Client]bool

	// userClients maps user IDs to their connected clients (one user can have multiple connections).
	userClients map[uuid.UUID]map[*Client]bool

	// register channel for new client connections.
	register chan *Client

	// unregister channel for client disconnections.
	unregister chan *Client

	// broadcast channel for messages to be broadcast.
	broadcast chan *broadcastMessage

	// mu protects concurrent access to maps.
	mu sync.RWMutex

	// logger for structured logging.
	logger *slog.Logger

	// done signals when the hub should stop.
	done chan struct{}

	// running indicates if the hub is currently running.
	running bool

	// runningMu protects the running flag.
	runningMu sync.RWMutex
}

// broadcastMessage represents a message to be delivered to a topic's subscribers.
type broadcastMessage struct {
	topic   string
	message []byte
}

// HubOption configures the Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger for the hub.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates a new Hub with the given options.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		topics:      make(map[string]map[*Client]bool),
		userClients: make(map[uuid.UUID]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *broadcastMessage, defaultBroadcastBufferSize),
		logger:      slog.Default(),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Run starts the hub's main event loop.
// It should be run as a goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		return
	}
	h.running = true
	h.runningMu.Unlock()

	h.logger.InfoContext(ctx, "websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case <-h.done:
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Stop signals the hub to stop.
func (h *Hub) Stop() {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if !h.running {
		return
	}

	close(h.done)
}

// shutdown performs graceful shutdown of all connections.
func (h *Hub) shutdown() {
	h.runningMu.Lock()
	h.running = false
	h.runningMu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	// Close all client connections
	for client := range h.clients {
		client.Close()
	}

	// Clear all maps
	h.clients = make(map[*Client]bool)
	h.topics = make(map[string]map[*Client]bool)
	h.userClients = make(map[uuid.UUID]map[*Client]bool)

	h.logger.Info("websocket hub stopped")
}

// Register registers a new client with the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister unregisters a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// registerClient adds a client to the hub.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	// Add to user clients map
	if !client.userID.IsZero() {
		if h.userClients[client.userID] == nil {
			h.userClients[client.userID] = make(map[*Client]bool)
		}
		h.userClients[client.userID][client] = true
	}

	h.logger.Debug("client registered",
		slog.String("user_id", client.userID.String()),
		slog.Int("total_clients", len(h.clients)),
	)
}

// unregisterClient removes a client from the hub.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	// Remove from all topics
	for _, topic := range client.GetTopics() {
		if subscribers, ok := h.topics[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.topics, topic)
			}
		}
	}

	// Remove from user clients map
	if !client.userID.IsZero() {
		if userClients, ok := h.userClients[client.userID]; ok {
			delete(userClients, client)
			if len(userClients) == 0 {
				delete(h.userClients, client.userID)
			}
		}
	}

	delete(h.clients, client)
	client.Close()

	h.logger.Debug("client unregistered",
		slog.String("user_id", client.userID.String()),
		slog.Int("total_clients", len(h.clients)),
	)
}

// Subscribe adds a client to a topic.
func (h *Hub) Subscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][client] = true
	client.AddTopic(topic)

	h.logger.Debug("client subscribed",
		slog.String("user_id", client.userID.String()),
		slog.String("topic", topic),
	)
}

// Unsubscribe removes a client from a topic.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.topics[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
	client.RemoveTopic(topic)

	h.logger.Debug("client unsubscribed",
		slog.String("user_id", client.userID.String()),
		slog.String("topic", topic),
	)
}

// BroadcastToTopic sends a message to all clients subscribed to a topic.
func (h *Hub) BroadcastToTopic(topic string, message []byte) {
	h.broadcast <- &broadcastMessage{
		topic:   topic,
		message: message,
	}
}

// handleBroadcast delivers a message to every subscriber of its topic.
func (h *Hub) handleBroadcast(msg *broadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subscribers, ok := h.topics[msg.topic]
	if !ok {
		return
	}

	for client := range subscribers {
		select {
		case client.send <- msg.message:
		default:
			// Client's send buffer is full, skip this message
			h.logger.Warn("client send buffer full, dropping message",
				slog.String("user_id", client.userID.String()),
				slog.String("topic", msg.topic),
			)
		}
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TopicCount returns the number of topics with subscribers.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}

// SubscriberCount returns the number of clients subscribed to a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if subscribers, ok := h.topics[topic]; ok {
		return len(subscribers)
	}
	return 0
}

// IsRunning returns whether the hub is currently running.
func (h *Hub) IsRunning() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()
	return h.running
}

// UserConnectionCount returns the number of connections for a specific user.
func (h *Hub) UserConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.userClients[userID]; ok {
		return len(clients)
	}
	return 0
}
