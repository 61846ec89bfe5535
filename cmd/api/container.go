// Package main provides the API server entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/querydeck/internal/config"
	httphandler "github.com/lllypuk/querydeck/internal/handler/http"
	wshandler "github.com/lllypuk/querydeck/internal/handler/websocket"
	"github.com/lllypuk/querydeck/internal/infrastructure/auth"
	"github.com/lllypuk/querydeck/internal/infrastructure/httpserver"
	"github.com/lllypuk/querydeck/internal/infrastructure/metrics"
	mongodbinfra "github.com/lllypuk/querydeck/internal/infrastructure/mongodb"
	"github.com/lllypuk/querydeck/internal/infrastructure/notifier"
	repomongo "github.com/lllypuk/querydeck/internal/infrastructure/repository/mongodb"
	ws "github.com/lllypuk/querydeck/internal/infrastructure/websocket"
	"github.com/lllypuk/querydeck/internal/middleware"
	"github.com/lllypuk/querydeck/internal/service"
)

// Connection timeouts.
const (
	redisPingTimeout       = 5 * time.Second
	mongoDisconnectTimeout = 10 * time.Second
)

// Container holds all application dependencies wired together.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Infrastructure
	MongoDB     *mongo.Client
	MongoDBName string
	Redis       *redis.Client

	// Repositories
	QueryItems  *repomongo.MongoQueryItemRepository
	Revisions   *repomongo.MongoRevisionRepository
	Collections *repomongo.MongoCollectionRepository
	Workspaces  *repomongo.MongoWorkspaceRepository
	Users       *repomongo.MongoUserRepository

	// Notification pipeline
	Notifier        *notifier.RedisNotifier
	NotifierMetrics *metrics.NotifierMetrics

	// WebSocket
	Hub    *ws.Hub
	Pusher *ws.Pusher

	// Services
	QuotaPolicy      *service.QuotaPolicy
	RevisionManager  *service.RevisionManager
	QueryService     *service.QueryService
	WorkspaceService *service.WorkspaceService

	// Auth
	JWTManager *auth.JWTManager

	// Rate limiting
	RateLimitStore middleware.RateLimitStore

	// HTTP handlers
	QueryHandler     *httphandler.QueryHandler
	WorkspaceHandler *httphandler.WorkspaceHandler
	WSHandler        *wshandler.Handler
}

// ContainerOption configures the container during construction.
type ContainerOption func(*Container)

// WithLogger sets the logger for the container.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		c.Logger = logger
	}
}

// NewContainer builds the dependency graph from configuration.
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.setupInfrastructure(); err != nil {
		// Clean up any partially initialized resources
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup infrastructure: %w", err)
	}

	c.setupRepositories()
	c.setupServices()

	if err := c.setupAuth(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup auth: %w", err)
	}

	c.setupHandlers()

	return c, nil
}

// setupInfrastructure initializes external connections and the
// notification/WebSocket pipeline.
func (c *Container) setupInfrastructure() error {
	ctx := context.Background()

	if err := c.setupMongoDB(ctx); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}

	if err := c.setupRedis(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	c.setupNotifier()
	c.setupHubAndPusher()
	c.setupRateLimit()

	return nil
}

// setupMongoDB initializes the MongoDB client.
func (c *Container) setupMongoDB(ctx context.Context) error {
	clientOpts := options.Client().
		ApplyURI(c.Config.MongoDB.URI).
		SetMaxPoolSize(c.Config.MongoDB.MaxPoolSize)

	client, connectErr := mongo.Connect(clientOpts)
	if connectErr != nil {
		return fmt.Errorf("failed to connect: %w", connectErr)
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.MongoDB = client
	c.MongoDBName = c.Config.MongoDB.Database

	c.Logger.InfoContext(ctx, "connected to MongoDB",
		slog.String("database", c.Config.MongoDB.Database),
	)

	// Create all necessary indexes
	db := client.Database(c.Config.MongoDB.Database)
	indexCtx, indexCancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer indexCancel()

	if indexErr := mongodbinfra.EnsureIndexes(indexCtx, db); indexErr != nil {
		return fmt.Errorf("failed to create indexes: %w", indexErr)
	}

	c.Logger.InfoContext(ctx, "MongoDB indexes created successfully")

	return nil
}

// setupRedis initializes the Redis client.
func (c *Container) setupRedis(ctx context.Context) error {
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
		PoolSize: c.Config.Redis.PoolSize,
	})

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if pingErr := c.Redis.Ping(pingCtx).Err(); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.Logger.InfoContext(ctx, "connected to Redis",
		slog.String("addr", c.Config.Redis.Addr),
	)

	return nil
}

// setupNotifier initializes the Redis change notifier with metrics.
func (c *Container) setupNotifier() {
	c.NotifierMetrics = metrics.NewNotifierMetrics(prometheus.DefaultRegisterer)

	retry := notifier.DefaultRetryConfig()
	if c.Config.Notifier.MaxRetries > 0 {
		retry.MaxRetries = c.Config.Notifier.MaxRetries
	}
	if c.Config.Notifier.RetryBackoff > 0 {
		retry.InitialBackoff = c.Config.Notifier.RetryBackoff
	}

	c.Notifier = notifier.NewRedisNotifier(
		c.Redis,
		notifier.WithLogger(c.Logger),
		notifier.WithChannelPrefix(c.Config.Notifier.ChannelPrefix),
		notifier.WithRetryConfig(retry),
		notifier.WithMetrics(c.NotifierMetrics),
	)

	c.Logger.Debug("change notifier initialized",
		slog.String("prefix", c.Config.Notifier.ChannelPrefix),
		slog.Int("max_retries", retry.MaxRetries),
	)
}

// setupHubAndPusher initializes the WebSocket hub and the change pusher.
func (c *Container) setupHubAndPusher() {
	c.Hub = ws.NewHub(ws.WithHubLogger(c.Logger))

	c.Pusher = ws.NewPusher(
		c.Hub,
		c.Notifier,
		ws.WithPusherLogger(c.Logger),
	)

	c.Logger.Debug("websocket hub and pusher initialized")
}

// setupRateLimit initializes the Redis-backed rate limit store.
func (c *Container) setupRateLimit() {
	c.RateLimitStore = middleware.NewRedisRateLimitStore(
		&redisClientAdapter{client: c.Redis},
		"",
	)
}

// setupRepositories initializes all MongoDB repositories.
func (c *Container) setupRepositories() {
	db := c.MongoDB.Database(c.MongoDBName)

	c.QueryItems = repomongo.NewMongoQueryItemRepository(db,
		repomongo.WithQueryItemRepoLogger(c.Logger))
	c.Revisions = repomongo.NewMongoRevisionRepository(
		db.Collection("query_item_revisions"),
		repomongo.WithRevisionRepoLogger(c.Logger))
	c.Collections = repomongo.NewMongoCollectionRepository(db,
		repomongo.WithCollectionRepoLogger(c.Logger))
	c.Workspaces = repomongo.NewMongoWorkspaceRepository(
		db.Collection("workspaces"),
		db.Collection("workspace_members"),
		repomongo.WithWorkspaceRepoLogger(c.Logger))
	c.Users = repomongo.NewMongoUserRepository(
		db.Collection("users"),
		repomongo.WithUserRepoLogger(c.Logger))

	c.Logger.Debug("repositories initialized")
}

// setupServices initializes the service layer.
func (c *Container) setupServices() {
	c.QuotaPolicy = service.NewQuotaPolicy(c.Users)
	c.RevisionManager = service.NewRevisionManager(
		c.QueryItems,
		c.Revisions,
		c.QuotaPolicy,
		service.WithRevisionManagerLogger(c.Logger),
	)

	c.QueryService = service.NewQueryService(service.QueryServiceConfig{
		Queries:         c.QueryItems,
		Revisions:       c.Revisions,
		Collections:     c.Collections,
		Users:           c.Users,
		Quotas:          c.QuotaPolicy,
		RevisionManager: c.RevisionManager,
		Notifier:        c.Notifier,
		Logger:          c.Logger,
	})

	c.WorkspaceService = service.NewWorkspaceService(
		c.Workspaces,
		c.Collections,
		c.Users,
		c.Logger,
	)

	c.Logger.Debug("services initialized")
}

// setupAuth initializes the JWT token manager.
func (c *Container) setupAuth() error {
	manager, err := auth.NewJWTManager(auth.JWTConfig{
		Secret:   c.Config.Auth.JWTSecret,
		Issuer:   c.Config.Auth.Issuer,
		Leeway:   c.Config.Auth.Leeway,
		TokenTTL: c.Config.Auth.TokenTTL,
	})
	if err != nil {
		return err
	}

	c.JWTManager = manager
	return nil
}

// setupHandlers initializes the HTTP and WebSocket handlers.
func (c *Container) setupHandlers() {
	c.QueryHandler = httphandler.NewQueryHandler(c.QueryService)
	c.WorkspaceHandler = httphandler.NewWorkspaceHandler(c.WorkspaceService)

	clientConfig := ws.DefaultClientConfig()
	clientConfig.ReadBufferSize = c.Config.WebSocket.ReadBufferSize
	clientConfig.WriteBufferSize = c.Config.WebSocket.WriteBufferSize
	clientConfig.PingInterval = c.Config.WebSocket.PingInterval
	clientConfig.PongWait = c.Config.WebSocket.PongTimeout

	c.WSHandler = wshandler.NewHandler(c.Hub,
		wshandler.WithTokenValidator(c.JWTManager),
		wshandler.WithHandlerConfig(wshandler.HandlerConfig{
			ReadBufferSize:  c.Config.WebSocket.ReadBufferSize,
			WriteBufferSize: c.Config.WebSocket.WriteBufferSize,
			Logger:          c.Logger,
			ClientConfig:    clientConfig,
		}),
	)

	c.Logger.Debug("handlers initialized")
}

// StartNotifier starts the change notification subscriber loop and wires the
// pusher to it. This should be called before the HTTP server starts.
func (c *Container) StartNotifier(ctx context.Context) error {
	if err := c.Pusher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pusher: %w", err)
	}

	go func() {
		if err := c.Notifier.Start(ctx); err != nil {
			c.Logger.Error("notifier error", slog.String("error", err.Error()))
		}
	}()

	c.Logger.InfoContext(ctx, "change notifier started")
	return nil
}

// StartHub starts the WebSocket hub.
// This should be called before the HTTP server starts accepting requests.
func (c *Container) StartHub(ctx context.Context) {
	go c.Hub.Run(ctx)
	c.Logger.InfoContext(ctx, "websocket hub started")
}

// Close releases all container resources.
func (c *Container) Close() error {
	c.Logger.Info("closing container resources...")

	var errs []error

	// Close Hub
	if c.Hub != nil {
		c.Hub.Stop()
		c.Logger.Debug("websocket hub stopped")
	}

	// Close Notifier
	if c.Notifier != nil {
		if err := c.Notifier.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("notifier shutdown: %w", err))
		} else {
			c.Logger.Debug("notifier stopped")
		}
	}

	// Close Redis
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		} else {
			c.Logger.Debug("redis connection closed")
		}
	}

	// Close MongoDB
	if c.MongoDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancel()

		if err := c.MongoDB.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect: %w", err))
		} else {
			c.Logger.Debug("mongodb connection closed")
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.Logger.Info("all container resources closed")
	return nil
}

// IsReady implements httpserver.HealthChecker.
// It checks if all infrastructure components are healthy.
func (c *Container) IsReady(ctx context.Context) bool {
	// Check MongoDB
	if c.MongoDB == nil {
		return false
	}
	if err := c.MongoDB.Ping(ctx, nil); err != nil {
		c.Logger.WarnContext(ctx, "mongodb health check failed", slog.String("error", err.Error()))
		return false
	}

	// Check Redis
	if c.Redis == nil {
		return false
	}
	if err := c.Redis.Ping(ctx).Err(); err != nil {
		c.Logger.WarnContext(ctx, "redis health check failed", slog.String("error", err.Error()))
		return false
	}

	// Check Hub
	if c.Hub == nil || !c.Hub.IsRunning() {
		c.Logger.WarnContext(ctx, "websocket hub is not running")
		return false
	}

	return true
}

// GetHealthStatus implements httpserver.HealthChecker.
// It returns detailed health status of all components.
func (c *Container) GetHealthStatus(ctx context.Context) []httpserver.ComponentStatus {
	var statuses []httpserver.ComponentStatus

	// MongoDB status
	mongoStatus := httpserver.ComponentStatus{Name: "mongodb", Status: httpserver.StatusHealthy}
	if c.MongoDB == nil {
		mongoStatus.Status = httpserver.StatusUnhealthy
		mongoStatus.Message = "client not initialized"
	} else if err := c.MongoDB.Ping(ctx, nil); err != nil {
		mongoStatus.Status = httpserver.StatusUnhealthy
		mongoStatus.Message = err.Error()
	}
	statuses = append(statuses, mongoStatus)

	// Redis status
	redisStatus := httpserver.ComponentStatus{Name: "redis", Status: httpserver.StatusHealthy}
	if c.Redis == nil {
		redisStatus.Status = httpserver.StatusUnhealthy
		redisStatus.Message = "client not initialized"
	} else if err := c.Redis.Ping(ctx).Err(); err != nil {
		redisStatus.Status = httpserver.StatusUnhealthy
		redisStatus.Message = err.Error()
	}
	statuses = append(statuses, redisStatus)

	// WebSocket Hub status
	hubStatus := httpserver.ComponentStatus{Name: "websocket_hub", Status: httpserver.StatusHealthy}
	if c.Hub == nil {
		hubStatus.Status = httpserver.StatusUnhealthy
		hubStatus.Message = "hub not initialized"
	} else if !c.Hub.IsRunning() {
		hubStatus.Status = httpserver.StatusUnhealthy
		hubStatus.Message = "hub not running"
	}
	statuses = append(statuses, hubStatus)

	// Notifier status
	notifierStatus := httpserver.ComponentStatus{Name: "notifier", Status: httpserver.StatusHealthy}
	if c.Notifier == nil {
		notifierStatus.Status = httpserver.StatusUnhealthy
		notifierStatus.Message = "notifier not initialized"
	} else if !c.Notifier.IsRunning() {
		notifierStatus.Status = httpserver.StatusDegraded
		notifierStatus.Message = "notifier not running"
	}
	statuses = append(statuses, notifierStatus)

	return statuses
}

// redisClientAdapter adapts go-redis to the middleware.RedisClient interface.
type redisClientAdapter struct {
	client *redis.Client
}

// Incr implements middleware.RedisClient.
func (a *redisClientAdapter) Incr(ctx context.Context, key string) (int64, error) {
	return a.client.Incr(ctx, key).Result()
}

// Expire implements middleware.RedisClient.
func (a *redisClientAdapter) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return a.client.Expire(ctx, key, expiration).Err()
}

// TTL implements middleware.RedisClient.
func (a *redisClientAdapter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return a.client.TTL(ctx, key).Result()
}

// Get implements middleware.RedisClient.
func (a *redisClientAdapter) Get(ctx context.Context, key string) (string, error) {
	return a.client.Get(ctx, key).Result()
}
