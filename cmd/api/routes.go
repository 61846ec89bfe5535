// Package main provides the API server entry point.
package main

import (
	"github.com/labstack/echo/v4"

	"github.com/lllypuk/querydeck/internal/infrastructure/httpserver"
	"github.com/lllypuk/querydeck/internal/middleware"
)

// SetupRoutes configures all API routes and middleware chains.
func SetupRoutes(c *Container) *httpserver.Router {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Wildcard CORS for development, explicit frontends when configured.
	corsConfig := middleware.DefaultCORSConfig()
	if origins := c.Config.Server.CORSOrigins; len(origins) > 0 {
		corsConfig = middleware.CORSConfigForOrigins(origins...)
	}

	// Create router configuration
	routerConfig := httpserver.RouterConfig{
		Logger: c.Logger,
		AuthMiddleware: middleware.Auth(middleware.AuthConfig{
			Logger:         c.Logger,
			TokenValidator: c.JWTManager,
			SkipPaths: []string{
				"/health",
				"/ready",
				"/health/details",
				"/metrics",
			},
			// WebSocket clients cannot set an Authorization header from
			// the browser API, so allow a token query parameter fallback.
			TokenQueryParam: "token",
		}),
		CORSConfig:     corsConfig,
		LoggingConfig:  middleware.DefaultLoggingConfig(),
		RecoveryConfig: middleware.DefaultRecoveryConfig(),
	}

	if c.RateLimitStore != nil {
		rateLimitConfig := middleware.DefaultRateLimitConfig()
		rateLimitConfig.Logger = c.Logger
		rateLimitConfig.Store = c.RateLimitStore
		routerConfig.RateLimitMiddleware = middleware.RateLimit(rateLimitConfig)
	}

	router := httpserver.NewRouter(e, routerConfig)

	// Health and metrics endpoints (unauthenticated)
	router.RegisterHealthEndpointsWithChecker(c)
	router.RegisterMetricsEndpoint()

	// Domain routes
	c.QueryHandler.RegisterRoutes(router)
	c.WorkspaceHandler.RegisterRoutes(router)

	// WebSocket endpoint for live change notifications
	router.Auth().GET("/ws", c.WSHandler.HandleWebSocket)

	// Print registered routes in development mode
	if c.Config.IsDevelopment() {
		router.PrintRoutes()
	}

	return router
}
