package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pagelift/optimizer/internal/pipeline"
)

// ErrRateLimited is returned when the submit boundary is saturated.
var ErrRateLimited = fmt.Errorf("submit rate limit exceeded")

// SubmitGuard protects the submit boundary: a token-bucket rate limiter
// plus a TTL idempotency cache keyed by page reference, so a client
// retrying the same page inside the window gets the original job back.
type SubmitGuard struct {
	limiter *rate.Limiter
	clock   pipeline.Clock
	ttl     time.Duration

	mu      sync.Mutex
	entries map[string]guardEntry
}

type guardEntry struct {
	jobID     string
	expiresAt time.Time
}

// NewSubmitGuard builds a guard allowing rps submits per second with the
// given burst, deduplicating repeat submits for ttl.
func NewSubmitGuard(rps float64, burst int, ttl time.Duration, clock pipeline.Clock) *SubmitGuard {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SubmitGuard{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]guardEntry),
	}
}

// Allow consumes one rate-limiter token, failing fast when none is
// available rather than queueing the caller.
func (g *SubmitGuard) Allow(_ context.Context) error {
	if !g.limiter.Allow() {
		return ErrRateLimited
	}
	return nil
}

// Existing reports the job id previously remembered for key, if its TTL
// has not lapsed. Expired entries are swept on access.
func (g *SubmitGuard) Existing(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()
	entry, ok := g.entries[key]
	if !ok {
		return "", false
	}
	return entry.jobID, true
}

// Remember binds key to jobID for the dedupe window.
func (g *SubmitGuard) Remember(key, jobID string) {
	if key == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[key] = guardEntry{jobID: jobID, expiresAt: g.clock.Now().Add(g.ttl)}
}

func (g *SubmitGuard) sweepLocked() {
	now := g.clock.Now()
	for key, entry := range g.entries {
		if now.After(entry.expiresAt) {
			delete(g.entries, key)
		}
	}
}
