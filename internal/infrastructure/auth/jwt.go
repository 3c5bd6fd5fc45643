package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/tradeledger/internal/domain"
)

// Claims represents the JWT claims. The subject is the actor ID recorded on
// every ledger entry the bearer writes.
type Claims struct {
	ActorID string      `json:"actor_id"`
	Name    string      `json:"name,omitempty"`
	Role    domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns the ledger actor the claims describe.
func (c *Claims) Actor() *domain.Actor {
	return &domain.Actor{ID: c.ActorID, Role: c.Role}
}

// JWTManager manages JWT token creation and validation
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
	}
}

// Generate issues a token for an operator.
func (m *JWTManager) Generate(actor *domain.Actor, name string) (string, error) {
	if actor == nil || actor.ID == "" {
		return "", domain.ErrMissingActor
	}
	if !actor.Role.IsValid() {
		return "", fmt.Errorf("%w: role %q", domain.ErrValidation, actor.Role)
	}

	now := time.Now()
	claims := Claims{
		ActorID: actor.ID,
		Name:    name,
		Role:    actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Verify verifies a JWT token and returns the claims
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrExpiredToken
		}
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	if claims.ActorID == "" || !claims.Role.IsValid() {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}
