package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ServiceAudience is the audience claim carried by bearer tokens sent to the
// remote generation service.
const ServiceAudience = "generation-service"

// ErrNoOwner is returned when a token is requested without an owner identity.
var ErrNoOwner = errors.New("owner identity required")

// TokenProvider hands out bearer tokens for a signed-in owner.
type TokenProvider interface {
	Token(ctx context.Context, ownerID string, forceRefresh bool) (string, error)
}

// OwnerTokens mints short-lived bearer tokens per owner. Non-forced requests
// reuse a cached token until it expires; forced requests always mint.
type OwnerTokens struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// NewOwnerTokens creates a provider with the given token lifetime.
func NewOwnerTokens(ttl time.Duration) *OwnerTokens {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OwnerTokens{TTL: ttl, sources: map[string]oauth2.TokenSource{}}
}

// Token returns a bearer token for ownerID.
func (o *OwnerTokens) Token(ctx context.Context, ownerID string, forceRefresh bool) (string, error) {
	if ownerID == "" {
		return "", ErrNoOwner
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	minter := &ownerMinter{owner: ownerID, ttl: o.TTL, now: o.now}

	o.mu.Lock()
	if o.sources == nil {
		o.sources = map[string]oauth2.TokenSource{}
	}
	src, ok := o.sources[ownerID]
	if forceRefresh || !ok {
		fresh, err := minter.Token()
		if err != nil {
			o.mu.Unlock()
			return "", err
		}
		src = oauth2.ReuseTokenSource(fresh, minter)
		o.sources[ownerID] = src
	}
	o.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (o *OwnerTokens) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

type ownerMinter struct {
	owner string
	ttl   time.Duration
	now   func() time.Time
}

func (m *ownerMinter) Token() (*oauth2.Token, error) {
	secret, err := secretKey()
	if err != nil {
		return nil, err
	}
	issued := m.now().UTC()
	expiry := issued.Add(m.ttl)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   m.owner,
		Audience:  jwt.ClaimStrings{ServiceAudience},
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expiry),
		ID:        uuid.NewString(),
	}}
	signed, err := signWith(secret, claims, m.ttl)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: signed, TokenType: "Bearer", Expiry: expiry}, nil
}
