package marketplace

import (
	"context"
	"sync"
	"time"
)

// Token is one bearer credential with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token is usable with some safety margin.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Add(30*time.Second).Before(t.ExpiresAt)
}

// TokenSource hands out a valid token, refreshing in place behind a mutex
// when the cached one expires. Adapters hold a TokenSource value instead of
// sharing a mutable global client.
type TokenSource struct {
	mu      sync.Mutex
	current Token
	refresh func(ctx context.Context) (Token, error)
}

// NewTokenSource creates a TokenSource with the given refresh function.
func NewTokenSource(refresh func(ctx context.Context) (Token, error)) *TokenSource {
	return &TokenSource{refresh: refresh}
}

// Get returns a valid token, refreshing if needed. Concurrent callers
// serialize on the refresh so the upstream auth endpoint sees one request.
func (s *TokenSource) Get(ctx context.Context) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Valid(time.Now()) {
		return s.current, nil
	}

	tok, err := s.refresh(ctx)
	if err != nil {
		return Token{}, err
	}
	s.current = tok
	return tok, nil
}

// Invalidate drops the cached token, forcing a refresh on next Get.
// Call after a 401 from the marketplace.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.current = Token{}
	s.mu.Unlock()
}
