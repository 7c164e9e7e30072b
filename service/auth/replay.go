package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrReplayed is returned for a signature that was already accepted.
var ErrReplayed = errors.New("request signature already used")

// ReplayGuard remembers accepted signatures. Claim reports false when key was
// claimed before and has not yet expired.
type ReplayGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ReplayWindow is how long a signature must be remembered for the given skew.
// A timestamp is accepted for maxSkew on either side of the server clock.
func ReplayWindow(maxSkew time.Duration) time.Duration {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	return 2 * maxSkew
}

// MemoryGuard is a ReplayGuard for a single server process.
type MemoryGuard struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryGuard returns an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]time.Time), now: time.Now}
}

// Claim implements ReplayGuard.
func (g *MemoryGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Sub(g.lastSweep) >= ttl {
		for k, expires := range g.seen {
			if !now.Before(expires) {
				delete(g.seen, k)
			}
		}
		g.lastSweep = now
	}

	if expires, ok := g.seen[key]; ok && now.Before(expires) {
		return false, nil
	}
	g.seen[key] = now.Add(ttl)
	return true, nil
}

// Len returns the number of remembered signatures.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

var _ ReplayGuard = (*MemoryGuard)(nil)
