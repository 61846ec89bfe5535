// Package auth provides JWT issuing and validation backed by a shared
// HS256 secret.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lllypuk/querydeck/internal/domain/uuid"
	"github.com/lllypuk/querydeck/internal/middleware"
)

// JWT errors.
var (
	ErrMissingSecret  = errors.New("jwt secret is required")
	ErrInvalidClaims  = errors.New("invalid claims")
	ErrMissingSubject = errors.New("missing subject claim")
)

// Default configuration values.
const (
	DefaultLeeway   = 30 * time.Second
	DefaultTokenTTL = 24 * time.Hour
)

// JWTConfig contains configuration for the JWT manager.
type JWTConfig struct {
	// Secret is the shared HMAC signing secret.
	Secret string

	// Issuer is the expected token issuer. Optional.
	Issuer string

	// Leeway is the clock skew tolerance.
	Leeway time.Duration

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
}

// JWTManager issues and validates HS256 tokens. It implements
// middleware.TokenValidator.
type JWTManager struct {
	secret   []byte
	issuer   string
	leeway   time.Duration
	tokenTTL time.Duration
}

// NewJWTManager creates a new JWT manager.
func NewJWTManager(config JWTConfig) (*JWTManager, error) {
	if config.Secret == "" {
		return nil, ErrMissingSecret
	}
	if config.Leeway == 0 {
		config.Leeway = DefaultLeeway
	}
	if config.TokenTTL == 0 {
		config.TokenTTL = DefaultTokenTTL
	}

	return &JWTManager{
		secret:   []byte(config.Secret),
		issuer:   config.Issuer,
		leeway:   config.Leeway,
		tokenTTL: config.TokenTTL,
	}, nil
}

// Issue creates a signed token for the given user.
func (m *JWTManager) Issue(userID uuid.UUID, username, email string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"email": email,
		"name":  username,
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(now.Add(m.tokenTTL)),
	}
	if m.issuer != "" {
		claims["iss"] = m.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a token string and returns the claims.
func (m *JWTManager) ValidateToken(_ context.Context, tokenString string) (*middleware.TokenClaims, error) {
	if tokenString == "" {
		return nil, middleware.ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithLeeway(m.leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.Parse(tokenString, m.keyFunc, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", middleware.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", middleware.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, middleware.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	return extractClaims(claims)
}

func (m *JWTManager) keyFunc(_ *jwt.Token) (any, error) {
	return m.secret, nil
}

// extractClaims converts raw JWT claims to middleware.TokenClaims.
func extractClaims(claims jwt.MapClaims) (*middleware.TokenClaims, error) {
	subject, _ := claims["sub"].(string)
	if subject == "" {
		return nil, ErrMissingSubject
	}

	userID, err := uuid.ParseUUID(subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a uuid: %w", ErrInvalidClaims, err)
	}

	tc := &middleware.TokenClaims{UserID: userID}
	tc.Email, _ = claims["email"].(string)
	tc.Username, _ = claims["name"].(string)

	if exp, expErr := claims.GetExpirationTime(); expErr == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}

	return tc, nil
}
