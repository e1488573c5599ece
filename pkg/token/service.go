package token

import (
	"time"
)

const (
	AccessTokenName  = "access_token"
	RefreshTokenName = "refresh_token"

	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
)

// TokenValue holds a signed token, its JWT ID, and its expiry
type TokenValue struct {
	Name   string
	Token  string
	JTI    string
	Expiry time.Time
}

// Pair holds the tokens returned by a successful login. RefreshToken is
// nil unless the login asked to be remembered.
type Pair struct {
	AccessToken  TokenValue
	RefreshToken *TokenValue
}

// Service issues and validates access and refresh tokens. The two token
// kinds are signed with distinct audiences so one never parses as the other.
type Service struct {
	accessGen     Generator
	refreshGen    Generator
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

type Option func(*Service)

func WithAccessExpiry(d time.Duration) Option {
	return func(s *Service) {
		s.accessExpiry = d
	}
}

func WithRefreshExpiry(d time.Duration) Option {
	return func(s *Service) {
		s.refreshExpiry = d
	}
}

func WithAccessGenerator(g Generator) Option {
	return func(s *Service) {
		s.accessGen = g
	}
}

func WithRefreshGenerator(g Generator) Option {
	return func(s *Service) {
		s.refreshGen = g
	}
}

// NewService creates a token service with default expiries. Options can
// override the generators and expiries.
func NewService(secret, issuer, audience string, opts ...Option) *Service {
	s := &Service{
		accessGen:     NewJwtGenerator(secret, issuer, audience, AccessTokenUse),
		refreshGen:    NewJwtGenerator(secret, issuer, audience, RefreshTokenUse),
		accessExpiry:  DefaultAccessTokenExpiry,
		refreshExpiry: DefaultRefreshTokenExpiry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateTokens creates the token set for the given subject. The access
// token is always issued; a refresh token only when rememberMe is set.
func (s *Service) GenerateTokens(subject, email, role string, rememberMe bool) (Pair, error) {
	access, accessClaims, err := s.accessGen.GenerateToken(subject, s.accessExpiry, email, role)
	if err != nil {
		return Pair{}, err
	}

	pair := Pair{
		AccessToken: TokenValue{
			Name:   AccessTokenName,
			Token:  access,
			JTI:    accessClaims.ID,
			Expiry: accessClaims.ExpiresAt.Time,
		},
	}
	if rememberMe {
		refresh, refreshClaims, err := s.refreshGen.GenerateToken(subject, s.refreshExpiry, email, role)
		if err != nil {
			return Pair{}, err
		}
		pair.RefreshToken = &TokenValue{
			Name:   RefreshTokenName,
			Token:  refresh,
			JTI:    refreshClaims.ID,
			Expiry: refreshClaims.ExpiresAt.Time,
		}
	}
	return pair, nil
}

// ParseAccessToken validates an access token and returns its claims
func (s *Service) ParseAccessToken(tokenStr string) (*Claims, error) {
	return s.accessGen.ParseToken(tokenStr)
}

// ParseRefreshToken validates a refresh token and returns its claims
func (s *Service) ParseRefreshToken(tokenStr string) (*Claims, error) {
	return s.refreshGen.ParseToken(tokenStr)
}
