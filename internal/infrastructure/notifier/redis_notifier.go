// Package notifier delivers change notifications over Redis Pub/Sub. The
// publishing side backs service.Notifier; the subscribing side feeds the
// websocket push layer in other processes.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lllypuk/querydeck/internal/infrastructure/metrics"
)

// Default retry configuration constants.
const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultBackoffFactor  = 2.0
	defaultChannelPrefix  = "changes:"
)

// Envelope wraps a change notification for serialization.
type Envelope struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Handler processes a received change notification.
type Handler func(ctx context.Context, envelope Envelope) error

// RetryConfig configures retry behavior for notification handling.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     defaultMaxRetries,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		BackoffFactor:  defaultBackoffFactor,
	}
}

// RedisNotifier publishes change notifications to Redis Pub/Sub and, when
// started, dispatches received notifications to registered handlers.
type RedisNotifier struct {
	client        *redis.Client
	pubsub        *redis.PubSub
	pubsubMu      sync.RWMutex
	handlers      map[string][]Handler
	handlersMu    sync.RWMutex
	running       bool
	runningMu     sync.RWMutex
	shutdown      chan struct{}
	wg            sync.WaitGroup
	logger        *slog.Logger
	retryConfig   RetryConfig
	channelPrefix string
	metrics       *metrics.NotifierMetrics
}

// Option configures a RedisNotifier.
type Option func(*RedisNotifier)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *RedisNotifier) {
		n.logger = logger
	}
}

// WithRetryConfig sets the retry configuration for handler dispatch.
func WithRetryConfig(config RetryConfig) Option {
	return func(n *RedisNotifier) {
		n.retryConfig = config
	}
}

// WithChannelPrefix sets a prefix for Redis channel names.
func WithChannelPrefix(prefix string) Option {
	return func(n *RedisNotifier) {
		n.channelPrefix = prefix
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.NotifierMetrics) Option {
	return func(n *RedisNotifier) {
		n.metrics = m
	}
}

// NewRedisNotifier creates a new Redis-based notifier.
func NewRedisNotifier(client *redis.Client, opts ...Option) *RedisNotifier {
	n := &RedisNotifier{
		client:        client,
		handlers:      make(map[string][]Handler),
		shutdown:      make(chan struct{}),
		logger:        slog.Default(),
		retryConfig:   DefaultRetryConfig(),
		channelPrefix: defaultChannelPrefix,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Notify publishes a change notification. Implements service.Notifier.
func (n *RedisNotifier) Notify(ctx context.Context, event string, payload any) error {
	if event == "" {
		return errors.New("event cannot be empty")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	envelope := Envelope{
		ID:         uuid.New().String(),
		Event:      event,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	channel := n.channelName(event)
	start := time.Now()
	publishErr := n.client.Publish(ctx, channel, data).Err()
	if n.metrics != nil {
		n.metrics.PublishDuration.WithLabelValues(event).Observe(time.Since(start).Seconds())
		status := metrics.StatusSuccess
		if publishErr != nil {
			status = metrics.StatusFailed
		}
		n.metrics.NotificationsPublished.WithLabelValues(event, status).Inc()
	}
	if publishErr != nil {
		return fmt.Errorf("failed to publish notification to Redis: %w", publishErr)
	}

	n.logger.DebugContext(ctx, "notification published",
		slog.String("notification_id", envelope.ID),
		slog.String("event", event),
		slog.String("channel", channel),
	)

	return nil
}

// Subscribe registers a handler for an event. Handlers run concurrently when
// notifications arrive.
func (n *RedisNotifier) Subscribe(event string, handler Handler) error {
	if event == "" {
		return errors.New("event cannot be empty")
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	n.handlersMu.Lock()
	defer n.handlersMu.Unlock()

	n.handlers[event] = append(n.handlers[event], handler)

	return nil
}

// Start begins listening on the subscribed channels. Blocks until Shutdown
// is called or the context is cancelled.
func (n *RedisNotifier) Start(ctx context.Context) error {
	n.runningMu.Lock()
	if n.running {
		n.runningMu.Unlock()
		return errors.New("notifier is already running")
	}
	n.running = true
	n.runningMu.Unlock()

	channels := n.subscribedChannels()
	if len(channels) == 0 {
		n.logger.WarnContext(ctx, "starting notifier with no subscriptions")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.shutdown:
			return nil
		}
	}

	pubsub := n.client.Subscribe(ctx, channels...)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to channels: %w", err)
	}

	n.pubsubMu.Lock()
	n.pubsub = pubsub
	n.pubsubMu.Unlock()

	n.logger.InfoContext(ctx, "notifier started",
		slog.Int("channel_count", len(channels)),
		slog.Any("channels", channels),
	)

	msgCh := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			n.logger.InfoContext(ctx, "notifier stopping due to context cancellation")
			return ctx.Err()

		case <-n.shutdown:
			n.logger.InfoContext(ctx, "notifier stopping due to shutdown signal")
			return nil

		case msg, ok := <-msgCh:
			if !ok {
				n.logger.WarnContext(ctx, "message channel closed")
				return nil
			}
			n.handleMessage(ctx, msg)
		}
	}
}

// Shutdown gracefully stops the notifier, waiting for pending handlers.
func (n *RedisNotifier) Shutdown() error {
	n.runningMu.Lock()
	if !n.running {
		n.runningMu.Unlock()
		return nil
	}
	n.running = false
	n.runningMu.Unlock()

	close(n.shutdown)

	n.wg.Wait()

	n.pubsubMu.Lock()
	pubsub := n.pubsub
	n.pubsub = nil
	n.pubsubMu.Unlock()

	if pubsub != nil {
		if err := pubsub.Close(); err != nil {
			return fmt.Errorf("failed to close pubsub: %w", err)
		}
	}

	return nil
}

// IsRunning reports whether the notifier loop is active.
func (n *RedisNotifier) IsRunning() bool {
	n.runningMu.RLock()
	defer n.runningMu.RUnlock()
	return n.running
}

// HandlerCount returns the number of handlers registered for an event.
func (n *RedisNotifier) HandlerCount(event string) int {
	n.handlersMu.RLock()
	defer n.handlersMu.RUnlock()
	return len(n.handlers[event])
}

// channelName returns the Redis channel name for an event.
func (n *RedisNotifier) channelName(event string) string {
	return n.channelPrefix + event
}

// subscribedChannels returns all Redis channel names with handlers.
func (n *RedisNotifier) subscribedChannels() []string {
	n.handlersMu.RLock()
	defer n.handlersMu.RUnlock()

	channels := make([]string, 0, len(n.handlers))
	for event := range n.handlers {
		channels = append(channels, n.channelName(event))
	}
	return channels
}

// handleMessage processes a message received from Redis.
func (n *RedisNotifier) handleMessage(ctx context.Context, msg *redis.Message) {
	var envelope Envelope
	if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
		n.logger.ErrorContext(ctx, "failed to unmarshal notification",
			slog.String("channel", msg.Channel),
			slog.String("error", err.Error()),
		)
		return
	}

	n.handlersMu.RLock()
	handlers := n.handlers[envelope.Event]
	n.handlersMu.RUnlock()

	for i, handler := range handlers {
		n.wg.Add(1)
		go n.executeHandler(ctx, handler, envelope, i)
	}
}

// executeHandler runs a single handler with retry logic.
func (n *RedisNotifier) executeHandler(
	ctx context.Context,
	handler Handler,
	envelope Envelope,
	handlerIndex int,
) {
	defer n.wg.Done()

	var lastErr error
	backoff := n.retryConfig.InitialBackoff

	for attempt := 0; attempt <= n.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				n.logger.WarnContext(ctx, "handler retry cancelled",
					slog.String("event", envelope.Event),
					slog.String("error", ctx.Err().Error()),
				)
				return
			case <-time.After(backoff):
			}

			backoff = time.Duration(float64(backoff) * n.retryConfig.BackoffFactor)
			if backoff > n.retryConfig.MaxBackoff {
				backoff = n.retryConfig.MaxBackoff
			}

			if n.metrics != nil {
				n.metrics.HandlerRetries.WithLabelValues(envelope.Event).Inc()
			}
		}

		if err := handler(ctx, envelope); err != nil {
			lastErr = err
			n.logger.WarnContext(ctx, "notification handler failed",
				slog.String("event", envelope.Event),
				slog.String("notification_id", envelope.ID),
				slog.Int("handler_index", handlerIndex),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}

		return
	}

	if n.metrics != nil {
		n.metrics.HandlerFailures.WithLabelValues(envelope.Event).Inc()
	}

	n.logger.ErrorContext(ctx, "notification handler failed after all retries",
		slog.String("event", envelope.Event),
		slog.String("notification_id", envelope.ID),
		slog.Int("handler_index", handlerIndex),
		slog.Int("max_retries", n.retryConfig.MaxRetries),
		slog.String("error", lastErr.Error()),
	)
}
