package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// Context keys for authentication data.
type contextKey string

const (
	// ContextKeyUserID is the context key for user ID.
	ContextKeyUserID contextKey = "user_id"

	// ContextKeyUsername is the context key for username.
	ContextKeyUsername contextKey = "username"

	// ContextKeyEmail is the context key for user email.
	ContextKeyEmail contextKey = "email"
)

// Auth errors.
var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
)

// TokenClaims represents the claims extracted from a JWT token.
type TokenClaims struct {
	// UserID is the internal user ID.
	UserID uuid.UUID

	// Username is the user's username.
	Username string

	// Email is the user's email address.
	Email string

	// ExpiresAt is the token expiration time.
	ExpiresAt time.Time
}

// TokenValidator defines the interface for validating JWT tokens.
type TokenValidator interface {
	// ValidateToken validates a JWT token and returns the claims.
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// Logger is the structured logger for auth events.
	Logger *slog.Logger

	// TokenValidator validates JWT tokens.
	TokenValidator TokenValidator

	// SkipPaths are paths that don't require authentication.
	SkipPaths []string

	// TokenQueryParam is a query parameter to check as fallback when no
	// Authorization header is present. Used by WebSocket clients, which
	// cannot set headers from the browser API.
	TokenQueryParam string
}

// DefaultAuthConfig returns an AuthConfig with sensible defaults.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Logger:    slog.Default(),
		SkipPaths: []string{"/health", "/ready", "/health/details"},
	}
}

// Auth returns an authentication middleware with the given configuration.
func Auth(config AuthConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	skipPaths := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			// Skip authentication for configured paths
			if _, ok := skipPaths[path]; ok {
				return next(c)
			}

			token, tokenErr := extractTokenFromRequest(c, config)
			if tokenErr != nil {
				return respondAuthError(c, tokenErr)
			}

			if config.TokenValidator == nil {
				config.Logger.Error("token validator not configured")
				return respondAuthError(c, ErrInvalidToken)
			}

			claims, validateErr := config.TokenValidator.ValidateToken(c.Request().Context(), token)
			if validateErr != nil {
				config.Logger.Warn("token validation failed",
					slog.String("error", validateErr.Error()),
					slog.String("path", path),
					slog.String("remote_ip", c.RealIP()),
				)
				return respondAuthError(c, validateErr)
			}

			enrichContext(c, claims)

			config.Logger.Debug("user authenticated",
				slog.String("user_id", claims.UserID.String()),
				slog.String("username", claims.Username),
				slog.String("path", path),
			)

			return next(c)
		}
	}
}

// extractTokenFromRequest extracts the auth token from the request.
// It first checks the Authorization header, then falls back to the
// configured query parameter.
func extractTokenFromRequest(c echo.Context, config AuthConfig) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader != "" {
		return extractBearerToken(authHeader)
	}

	if config.TokenQueryParam != "" {
		if token := c.QueryParam(config.TokenQueryParam); token != "" {
			return token, nil
		}
	}

	return "", ErrMissingAuthHeader
}

// extractBearerToken extracts the token from a Bearer authorization header.
func extractBearerToken(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrInvalidAuthHeader
	}

	return token, nil
}

// enrichContext adds user information to the echo context.
func enrichContext(c echo.Context, claims *TokenClaims) {
	c.Set(string(ContextKeyUserID), claims.UserID)
	c.Set(string(ContextKeyUsername), claims.Username)
	c.Set(string(ContextKeyEmail), claims.Email)
}

// respondAuthError sends an authentication error response.
func respondAuthError(c echo.Context, err error) error {
	code := "UNAUTHORIZED"
	message := "Authentication required"

	switch {
	case errors.Is(err, ErrMissingAuthHeader):
		message = "Missing authorization header"
	case errors.Is(err, ErrInvalidAuthHeader):
		message = "Invalid authorization header format"
	case errors.Is(err, ErrTokenExpired):
		message = "Token has expired"
		code = "TOKEN_EXPIRED"
	case errors.Is(err, ErrInvalidToken):
		message = "Invalid token"
	}

	return c.JSON(http.StatusUnauthorized, map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// GetUserID extracts the user ID from the echo context.
func GetUserID(c echo.Context) uuid.UUID {
	if id, ok := c.Get(string(ContextKeyUserID)).(uuid.UUID); ok {
		return id
	}
	return uuid.UUID("")
}

// GetUsername extracts the username from the echo context.
func GetUsername(c echo.Context) string {
	if username, ok := c.Get(string(ContextKeyUsername)).(string); ok {
		return username
	}
	return ""
}

// GetEmail extracts the email from the echo context.
func GetEmail(c echo.Context) string {
	if email, ok := c.Get(string(ContextKeyEmail)).(string); ok {
		return email
	}
	return ""
}
