package flow

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultTokenTTL is how long an unredeemed confirmation token stays valid.
const DefaultTokenTTL = 10 * time.Minute

// DefaultTokenCapacity bounds the number of outstanding tokens.
const DefaultTokenCapacity = 512

type tokenEntry struct {
	signature string
	issuedAt  time.Time
}

// TokenStore issues and redeems single-use confirmation tokens. Tokens are
// opaque UUIDs bound to one flow signature; they expire after the TTL and
// are deleted on redemption, so replaying a consumed token always fails.
type TokenStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, tokenEntry]
}

// NewTokenStore builds a store with the given TTL and capacity. Zero values
// select the defaults.
func NewTokenStore(ttl time.Duration, capacity int) *TokenStore {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if capacity <= 0 {
		capacity = DefaultTokenCapacity
	}
	return &TokenStore{
		cache: expirable.NewLRU[string, tokenEntry](capacity, nil, ttl),
	}
}

// Issue mints a fresh token bound to signature.
func (s *TokenStore) Issue(signature string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.cache.Add(token, tokenEntry{signature: signature, issuedAt: time.Now()})
	s.mu.Unlock()
	return token
}

// Redeem consumes token if it exists, has not expired, and was issued for
// the same signature. The token is removed whether or not the signature
// matches, so a token presented against the wrong flow is burned rather
// than left around.
func (s *TokenStore) Redeem(token, signature string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache.Get(token)
	if !ok {
		return false
	}
	s.cache.Remove(token)
	return entry.signature == signature
}

// Outstanding reports how many unexpired tokens are held.
func (s *TokenStore) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
