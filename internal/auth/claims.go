package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the "kind" claim. Access tokens authenticate
// REST requests; tickets are single-purpose tokens for WebSocket upgrades.
const (
	TokenKindAccess = "access"
	TokenKindTicket = "ws_ticket"
)

// WSTicketTTL is the lifetime of a WebSocket ticket. Tickets are minted
// immediately before the upgrade request, so the window is kept short.
const WSTicketTTL = 30 * time.Second

// CustomClaims extends JWT standard claims with relay-specific fields.
type CustomClaims struct {
	jwt.RegisteredClaims
	Role Role   `json:"role"`
	Kind string `json:"kind"`
}

// GenerateAccessToken creates a signed JWT access token for a user.
// Access tokens are short-lived (configured TTL) and validated by signature only (no DB hit).
func GenerateAccessToken(user *User, secret string, ttlMinutes int) (string, error) {
	if ttlMinutes <= 0 {
		ttlMinutes = 15 //nolint:mnd // default 15-minute access token TTL
	}
	return generateToken(user, secret, time.Duration(ttlMinutes)*time.Minute, TokenKindAccess)
}

// GenerateWSTicket creates a short-lived ticket token for a WebSocket upgrade.
// Browsers cannot set Authorization headers on upgrade requests, so the
// client fetches a ticket over REST and passes it as a query parameter.
func GenerateWSTicket(user *User, secret string) (string, error) {
	return generateToken(user, secret, WSTicketTTL, TokenKindTicket)
}

func generateToken(user *User, secret string, ttl time.Duration, kind string) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role: user.Role,
		Kind: kind,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", kind, err)
	}
	return signed, nil
}

// ParseToken validates and parses a JWT of the expected kind, returning
// the custom claims. It checks the signature, expiry, and required fields.
func ParseToken(tokenString, secret, expectedKind string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}

	if claims.Kind != expectedKind {
		return nil, fmt.Errorf("%w: wrong token kind %q", ErrTokenInvalid, claims.Kind)
	}

	return claims, nil
}
