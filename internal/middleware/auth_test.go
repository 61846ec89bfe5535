package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/querydeck/internal/domain/uuid"
	"github.com/lllypuk/querydeck/internal/middleware"
)

// mockTokenValidator is a mock implementation of TokenValidator for testing.
type mockTokenValidator struct {
	claims *middleware.TokenClaims
	err    error
	tokens []string
}

func (m *mockTokenValidator) ValidateToken(_ context.Context, token string) (*middleware.TokenClaims, error) {
	m.tokens = append(m.tokens, token)
	return m.claims, m.err
}

func validClaims() *middleware.TokenClaims {
	return &middleware.TokenClaims{
		UserID:    uuid.NewUUID(),
		Username:  "alice",
		Email:     "alice@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func newAuthApp(config middleware.AuthConfig, handler echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Auth(config))
	if handler == nil {
		handler = func(c echo.Context) error {
			return c.String(http.StatusOK, "ok")
		}
	}
	e.GET("/test", handler)
	e.GET("/health", handler)
	return e
}

func TestDefaultAuthConfig(t *testing.T) {
	config := middleware.DefaultAuthConfig()

	assert.NotNil(t, config.Logger)
	assert.Contains(t, config.SkipPaths, "/health")
	assert.Contains(t, config.SkipPaths, "/ready")
}

func TestAuth_MissingAuthorizationHeader(t *testing.T) {
	e := newAuthApp(middleware.AuthConfig{
		TokenValidator: &mockTokenValidator{claims: validClaims()},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
	assert.Contains(t, rec.Body.String(), "Missing authorization header")
}

func TestAuth_InvalidAuthorizationHeaderFormat(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
	}{
		{name: "no bearer prefix", authHeader: "token-without-prefix"},
		{name: "wrong scheme", authHeader: "Basic dXNlcjpwYXNz"},
		{name: "empty bearer token", authHeader: "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newAuthApp(middleware.AuthConfig{
				TokenValidator: &mockTokenValidator{claims: validClaims()},
			}, nil)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(echo.HeaderAuthorization, tt.authHeader)
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "Invalid authorization header format")
		})
	}
}

func TestAuth_ValidToken(t *testing.T) {
	claims := validClaims()
	validator := &mockTokenValidator{claims: claims}

	e := newAuthApp(middleware.AuthConfig{TokenValidator: validator}, func(c echo.Context) error {
		assert.Equal(t, claims.UserID, middleware.GetUserID(c))
		assert.Equal(t, "alice", middleware.GetUsername(c))
		assert.Equal(t, "alice@example.com", middleware.GetEmail(c))
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer valid-token")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"valid-token"}, validator.tokens)
}

func TestAuth_TokenFromQueryParam(t *testing.T) {
	validator := &mockTokenValidator{claims: validClaims()}

	e := newAuthApp(middleware.AuthConfig{
		TokenValidator:  validator,
		TokenQueryParam: "token",
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/test?token=ws-token", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"ws-token"}, validator.tokens)
}

func TestAuth_HeaderTakesPrecedenceOverQueryParam(t *testing.T) {
	validator := &mockTokenValidator{claims: validClaims()}

	e := newAuthApp(middleware.AuthConfig{
		TokenValidator:  validator,
		TokenQueryParam: "token",
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/test?token=query-token", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer header-token")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"header-token"}, validator.tokens)
}

func TestAuth_ExpiredToken(t *testing.T) {
	e := newAuthApp(middleware.AuthConfig{
		TokenValidator: &mockTokenValidator{err: middleware.ErrTokenExpired},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer expired-token")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_EXPIRED")
}

func TestAuth_InvalidToken(t *testing.T) {
	e := newAuthApp(middleware.AuthConfig{
		TokenValidator: &mockTokenValidator{err: middleware.ErrInvalidToken},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer bad-token")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid token")
}

func TestAuth_SkipPaths(t *testing.T) {
	e := newAuthApp(middleware.AuthConfig{
		TokenValidator: &mockTokenValidator{err: middleware.ErrInvalidToken},
		SkipPaths:      []string{"/health"},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_NoValidatorConfigured(t *testing.T) {
	e := newAuthApp(middleware.AuthConfig{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer some-token")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetUserID_Unset(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.True(t, middleware.GetUserID(c).IsZero())
	assert.Empty(t, middleware.GetUsername(c))
	assert.Empty(t, middleware.GetEmail(c))
}
