package websocket_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/querydeck/internal/domain/uuid"
	"github.com/lllypuk/querydeck/internal/infrastructure/notifier"
	ws "github.com/lllypuk/querydeck/internal/infrastructure/websocket"
	"github.com/lllypuk/querydeck/internal/service"
)

// fakeSubscriber records registered handlers and lets tests inject
// notifications directly.
type fakeSubscriber struct {
	handlers map[string][]notifier.Handler
	err      error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string][]notifier.Handler)}
}

func (s *fakeSubscriber) Subscribe(event string, handler notifier.Handler) error {
	if s.err != nil {
		return s.err
	}
	s.handlers[event] = append(s.handlers[event], handler)
	return nil
}

func (s *fakeSubscriber) emit(ctx context.Context, envelope notifier.Envelope) error {
	for _, handler := range s.handlers[envelope.Event] {
		if err := handler(ctx, envelope); err != nil {
			return err
		}
	}
	return nil
}

func TestPusher_Start(t *testing.T) {
	t.Run("subscribes to default events", func(t *testing.T) {
		hub := ws.NewHub()
		sub := newFakeSubscriber()
		pusher := ws.NewPusher(hub, sub)

		require.NoError(t, pusher.Start(context.Background()))

		assert.True(t, pusher.IsRunning())
		assert.Len(t, sub.handlers[service.EventQueryCreated], 1)
		assert.Len(t, sub.handlers[service.EventQueryUpdated], 1)
		assert.Len(t, sub.handlers[service.EventQueryDeleted], 1)
	})

	t.Run("second start is a no-op", func(t *testing.T) {
		hub := ws.NewHub()
		sub := newFakeSubscriber()
		pusher := ws.NewPusher(hub, sub)

		require.NoError(t, pusher.Start(context.Background()))
		require.NoError(t, pusher.Start(context.Background()))

		assert.Len(t, sub.handlers[service.EventQueryCreated], 1)
	})

	t.Run("propagates subscribe failure", func(t *testing.T) {
		hub := ws.NewHub()
		sub := newFakeSubscriber()
		sub.err = errors.New("redis down")
		pusher := ws.NewPusher(hub, sub)

		require.Error(t, pusher.Start(context.Background()))
	})

	t.Run("honors custom event list", func(t *testing.T) {
		hub := ws.NewHub()
		sub := newFakeSubscriber()
		pusher := ws.NewPusher(hub, sub,
			ws.WithPusherEvents([]string{service.EventQueryDeleted}),
		)

		require.NoError(t, pusher.Start(context.Background()))

		assert.Len(t, sub.handlers, 1)
		assert.Len(t, sub.handlers[service.EventQueryDeleted], 1)
	})
}

func TestPusher_ForwardsNotificationToSubscribers(t *testing.T) {
	hub := ws.NewHub()
	ctx := t.Context()

	go hub.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	serverConn, clientConn, cleanup := createWSConnPair(t)
	defer cleanup()

	client := ws.NewClient(hub, serverConn, uuid.NewUUID())
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)
	hub.Subscribe(client, service.EventQueryUpdated)
	time.Sleep(10 * time.Millisecond)

	go client.WritePump()

	sub := newFakeSubscriber()
	pusher := ws.NewPusher(hub, sub)
	require.NoError(t, pusher.Start(ctx))

	itemID := uuid.NewUUID().String()
	payload, err := json.Marshal(service.ChangePayload{ID: itemID})
	require.NoError(t, err)

	require.NoError(t, sub.emit(ctx, notifier.Envelope{
		ID:      uuid.NewUUID().String(),
		Event:   service.EventQueryUpdated,
		Payload: payload,
	}))

	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(time.Second)))
	_, received, err := clientConn.ReadMessage()
	require.NoError(t, err)

	var msg ws.OutboundMessage
	require.NoError(t, json.Unmarshal(received, &msg))
	assert.Equal(t, service.EventQueryUpdated, msg.Type)

	data, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(data))
}
