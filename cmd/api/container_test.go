package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/querydeck/internal/config"
	"github.com/lllypuk/querydeck/internal/infrastructure/httpserver"
)

func TestContainerOption_WithLogger(t *testing.T) {
	logger := slog.Default()
	c := &Container{}
	opt := WithLogger(logger)
	opt(c)
	assert.Equal(t, logger, c.Logger)
}

func TestContainer_Close_NoResources(t *testing.T) {
	// Container with no initialized resources should close without error
	c := &Container{
		Logger: slog.Default(),
	}
	err := c.Close()
	assert.NoError(t, err)
}

func TestContainer_Close_PartialResources(t *testing.T) {
	// Container with some nil resources should still close properly
	c := &Container{
		Logger:   slog.Default(),
		MongoDB:  nil,
		Redis:    nil,
		Notifier: nil,
		Hub:      nil,
	}
	err := c.Close()
	assert.NoError(t, err)
}

func TestContainer_IsReady_NoResources(t *testing.T) {
	// Container with no resources should report not ready
	c := &Container{
		Logger: slog.Default(),
	}
	ctx := context.Background()
	ready := c.IsReady(ctx)
	assert.False(t, ready)
}

func TestContainer_IsReady_NilMongoDB(t *testing.T) {
	c := &Container{
		Logger:  slog.Default(),
		MongoDB: nil,
	}
	ctx := context.Background()
	ready := c.IsReady(ctx)
	assert.False(t, ready)
}

func TestContainer_GetHealthStatus_NoResources(t *testing.T) {
	c := &Container{
		Logger: slog.Default(),
	}
	ctx := context.Background()
	statuses := c.GetHealthStatus(ctx)

	require.Len(t, statuses, 4) // mongodb, redis, websocket_hub, notifier

	// All should be unhealthy
	for _, status := range statuses {
		assert.Equal(t, httpserver.StatusUnhealthy, status.Status, "component %s should be unhealthy", status.Name)
		assert.NotEmpty(t, status.Message, "component %s should have a message", status.Name)
	}
}

func TestContainer_GetHealthStatus_ComponentNames(t *testing.T) {
	c := &Container{
		Logger: slog.Default(),
	}
	ctx := context.Background()
	statuses := c.GetHealthStatus(ctx)

	names := make(map[string]bool)
	for _, status := range statuses {
		names[status.Name] = true
	}

	assert.True(t, names["mongodb"], "should have mongodb status")
	assert.True(t, names["redis"], "should have redis status")
	assert.True(t, names["websocket_hub"], "should have websocket_hub status")
	assert.True(t, names["notifier"], "should have notifier status")
}

func TestHealthStatus_Structure(t *testing.T) {
	status := httpserver.ComponentStatus{
		Name:    "test",
		Status:  httpserver.StatusHealthy,
		Message: "all good",
	}

	assert.Equal(t, "test", status.Name)
	assert.Equal(t, httpserver.StatusHealthy, status.Status)
	assert.Equal(t, "all good", status.Message)
}

func TestHealthStatusConstants(t *testing.T) {
	assert.Equal(t, "healthy", httpserver.StatusHealthy)
	assert.Equal(t, "unhealthy", httpserver.StatusUnhealthy)
	assert.Equal(t, "degraded", httpserver.StatusDegraded)
}

func TestContainerTimeoutConstants(t *testing.T) {
	assert.Equal(t, 5*time.Second, redisPingTimeout)
	assert.Equal(t, 10*time.Second, mongoDisconnectTimeout)
}

func TestNewContainer_UnreachableMongoDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping connection test in short mode")
	}

	cfg := config.DefaultConfig()
	cfg.MongoDB.URI = "mongodb://127.0.0.1:1" // nothing listens here
	cfg.MongoDB.Timeout = 500 * time.Millisecond

	container, err := NewContainer(cfg, WithLogger(slog.Default()))
	require.Error(t, err)
	assert.Nil(t, container)
	assert.Contains(t, err.Error(), "infrastructure")
}
