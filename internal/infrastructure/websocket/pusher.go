package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/lllypuk/querydeck/internal/infrastructure/notifier"
	"github.com/lllypuk/querydeck/internal/service"
)

// Subscriber is the notification source the pusher listens to.
// Declared on the consumer side per project guidelines.
type Subscriber interface {
	// Subscribe registers a handler for a specific event.
	Subscribe(event string, handler notifier.Handler) error
}

// OutboundMessage represents a message to be sent over WebSocket.
type OutboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Pusher listens to the change notification stream and forwards each change
// to the clients subscribed to its topic.
type Pusher struct {
	hub        *Hub
	subscriber Subscriber
	logger     *slog.Logger

	// events lists which events to subscribe to.
	events []string

	// running indicates if the pusher is active.
	running bool

	// runningMu protects the running flag.
	runningMu sync.RWMutex
}

// PusherOption configures a Pusher.
type PusherOption func(*Pusher)

// WithPusherLogger sets the logger for the pusher.
func WithPusherLogger(logger *slog.Logger) PusherOption {
	return func(p *Pusher) {
		p.logger = logger
	}
}

// WithPusherEvents sets which events to subscribe to.
func WithPusherEvents(events []string) PusherOption {
	return func(p *Pusher) {
		p.events = events
	}
}

// DefaultPusherEvents returns the default events to push.
func DefaultPusherEvents() []string {
	return []string{
		service.EventQueryCreated,
		service.EventQueryUpdated,
		service.EventQueryDeleted,
	}
}

// NewPusher creates a new Pusher.
func NewPusher(hub *Hub, subscriber Subscriber, opts ...PusherOption) *Pusher {
	p := &Pusher{
		hub:        hub,
		subscriber: subscriber,
		logger:     slog.Default(),
		events:     DefaultPusherEvents(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start subscribes to the notification stream. Registers handlers but does
// not block.
func (p *Pusher) Start(ctx context.Context) error {
	p.runningMu.Lock()
	if p.running {
		p.runningMu.Unlock()
		return nil
	}
	p.running = true
	p.runningMu.Unlock()

	for _, event := range p.events {
		if err := p.subscriber.Subscribe(event, func(handlerCtx context.Context, envelope notifier.Envelope) error {
			return p.handleNotification(handlerCtx, envelope)
		}); err != nil {
			p.logger.ErrorContext(ctx, "failed to subscribe to event",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			return err
		}
		p.logger.DebugContext(ctx, "subscribed to event", slog.String("event", event))
	}

	p.logger.InfoContext(ctx, "websocket pusher started",
		slog.Int("events", len(p.events)),
	)

	return nil
}

// IsRunning returns whether the pusher is running.
func (p *Pusher) IsRunning() bool {
	p.runningMu.RLock()
	defer p.runningMu.RUnlock()
	return p.running
}

// handleNotification forwards a change notification to topic subscribers.
// The topic is the event name; the payload travels as-is.
func (p *Pusher) handleNotification(ctx context.Context, envelope notifier.Envelope) error {
	message := OutboundMessage{
		Type: envelope.Event,
		Data: envelope.Payload,
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal websocket message",
			slog.String("event", envelope.Event),
			slog.String("error", err.Error()),
		)
		return err
	}

	p.hub.BroadcastToTopic(envelope.Event, messageBytes)

	p.logger.DebugContext(ctx, "pushed change notification",
		slog.String("event", envelope.Event),
		slog.String("notification_id", envelope.ID),
	)

	return nil
}
