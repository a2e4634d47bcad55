package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func TestGuardRemembersWithinTTL(t *testing.T) {
	t.Parallel()

	clock := &stepClock{now: time.Unix(1700000000, 0)}
	guard := NewSubmitGuard(100, 100, 30*time.Second, clock)

	guard.Remember("https://example.com/a", "job-1")

	jobID, ok := guard.Existing("https://example.com/a")
	require.True(t, ok)
	require.Equal(t, "job-1", jobID)

	_, ok = guard.Existing("https://example.com/b")
	require.False(t, ok)
}

func TestGuardEntryExpires(t *testing.T) {
	t.Parallel()

	clock := &stepClock{now: time.Unix(1700000000, 0)}
	guard := NewSubmitGuard(100, 100, 30*time.Second, clock)

	guard.Remember("https://example.com/a", "job-1")
	clock.now = clock.now.Add(31 * time.Second)

	_, ok := guard.Existing("https://example.com/a")
	require.False(t, ok)
}

func TestGuardEmptyKeyNeverMatches(t *testing.T) {
	t.Parallel()

	guard := NewSubmitGuard(100, 100, 30*time.Second, &stepClock{now: time.Now()})
	guard.Remember("", "job-1")
	_, ok := guard.Existing("")
	require.False(t, ok)
}

func TestGuardRateLimiterExhausts(t *testing.T) {
	t.Parallel()

	guard := NewSubmitGuard(0.001, 2, time.Minute, &stepClock{now: time.Now()})
	ctx := context.Background()

	require.NoError(t, guard.Allow(ctx))
	require.NoError(t, guard.Allow(ctx))
	require.ErrorIs(t, guard.Allow(ctx), ErrRateLimited)
}
