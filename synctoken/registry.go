// Package synctoken maps opaque handoff tokens to sessions so a second
// device can resolve and continue tracking a live session. Tokens carry
// a TTL; expired entries are reclaimed lazily on lookup and by a
// periodic janitor.
package synctoken

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/focushive/sessiond/internal/timeutil"
)

// ErrTokenNotFound is returned for unknown, invalidated or expired
// tokens.
var ErrTokenNotFound = errors.New("sync token not found or expired")

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

type entry struct {
	sessionID string
	expiresAt time.Time
}

// Registry is a concurrency-safe token↔session map. It holds a lookup
// relation only and owns no session data.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]entry
	ttl    time.Duration
	clock  timeutil.Clock
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock overrides the wall clock, mainly for tests.
func WithClock(clock timeutil.Clock) Option {
	return func(r *Registry) {
		r.clock = clock
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tokens: make(map[string]entry),
		ttl:    DefaultTTL,
		clock:  timeutil.SystemClock{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Generate creates an opaque token bound to the session.
func (r *Registry) Generate(sessionID string) string {
	token := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token] = entry{
		sessionID: sessionID,
		expiresAt: r.clock.Now().Add(r.ttl),
	}

	return token
}

// Resolve returns the session a token is bound to.
func (r *Registry) Resolve(token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.tokens[token]
	if !ok {
		return "", ErrTokenNotFound
	}

	if !e.expiresAt.After(r.clock.Now()) {
		delete(r.tokens, token)
		return "", ErrTokenNotFound
	}

	return e.sessionID, nil
}

// Refresh atomically invalidates oldToken and returns a fresh token
// bound to the same session. Both tokens never resolve at once, so a
// handoff chain always points at a single session.
func (r *Registry) Refresh(oldToken string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.tokens[oldToken]
	if !ok || !e.expiresAt.After(r.clock.Now()) {
		delete(r.tokens, oldToken)
		return "", ErrTokenNotFound
	}

	delete(r.tokens, oldToken)

	token := uuid.NewString()
	r.tokens[token] = entry{
		sessionID: e.sessionID,
		expiresAt: r.clock.Now().Add(r.ttl),
	}

	return token, nil
}

// StartJanitor purges expired tokens periodically until the context is
// cancelled.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.purge()
			}
		}
	}()
}

func (r *Registry) purge() {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for token, e := range r.tokens {
		if !e.expiresAt.After(now) {
			delete(r.tokens, token)
		}
	}
}

// Len reports the number of live tokens.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.tokens)
}
