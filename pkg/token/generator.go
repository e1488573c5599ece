package token

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token use constants. The use name is folded into the audience so access
// and refresh tokens are not interchangeable even under a shared secret.
const (
	AccessTokenUse  = "access"
	RefreshTokenUse = "refresh"
)

// Claims carries the identity claims embedded in every issued token
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Generator interface defines methods for token operations
type Generator interface {
	// GenerateToken generates a signed token for the given subject and
	// returns it along with the claims it carries
	GenerateToken(subject string, expiry time.Duration, email, role string) (string, *Claims, error)

	// ParseToken parses and validates a token
	ParseToken(tokenStr string) (*Claims, error)
}

// JwtGenerator implements the Generator interface using HS256 signing
type JwtGenerator struct {
	Secret   string
	Issuer   string
	Audience string
}

// NewJwtGenerator creates a generator bound to one token use. The token use
// is appended to the audience and checked on parse.
func NewJwtGenerator(secret, issuer, audience, tokenUse string) *JwtGenerator {
	return &JwtGenerator{
		Secret:   secret,
		Issuer:   issuer,
		Audience: fmt.Sprintf("%s:%s", audience, tokenUse),
	}
}

// GenerateToken creates a new signed token with the given subject and claims
func (g *JwtGenerator) GenerateToken(subject string, expiry time.Duration, email, role string) (string, *Claims, error) {
	now := time.Now().UTC()
	claims := &Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   subject,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{g.Audience},
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := tok.SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed to sign JWT claims", "err", err)
		return "", nil, err
	}
	return ss, claims, nil
}

// ParseToken parses and validates a token string, including the
// use-specific audience
func (g *JwtGenerator) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.Secret), nil
	},
		jwt.WithIssuer(g.Issuer),
		jwt.WithAudience(g.Audience),
	)
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
