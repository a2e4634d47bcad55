package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pagelift/optimizer/internal/pipeline"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestJob(id string) pipeline.Job {
	return pipeline.Job{
		ID:      id,
		PageRef: "cold-brew",
		Status:  pipeline.JobStatusPending,
	}
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	store := NewJobStore(fixedClock{now: now})
	ctx := context.Background()

	require.NoError(t, store.CreateJob(ctx, newTestJob("j1")))

	require.NoError(t, store.UpdateProgress(ctx, "j1", "fetching-content", 10))
	job, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, pipeline.JobStatusRunning, job.Status)
	require.Equal(t, 10, job.Progress)
	require.Equal(t, "fetching-content", job.CurrentStep)
	require.NotNil(t, job.StartedAt)
	require.Equal(t, now, *job.StartedAt)

	bundle := &pipeline.ContentBundle{Title: "T", QualityScore: 90}
	require.NoError(t, store.CompleteJob(ctx, "j1", bundle))
	job, err = store.GetJob(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, pipeline.JobStatusCompleted, job.Status)
	require.Equal(t, 100, job.Progress)
	require.Equal(t, "completed", job.CurrentStep)
	require.Equal(t, bundle, job.Result)
	require.Empty(t, job.ErrorMessage)
	require.NotNil(t, job.CompletedAt)
}

func TestProgressIsMonotone(t *testing.T) {
	t.Parallel()

	store := NewJobStore(nil)
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, newTestJob("j1")))

	require.NoError(t, store.UpdateProgress(ctx, "j1", "generating-content", 50))
	require.NoError(t, store.UpdateProgress(ctx, "j1", "fetching-content", 10))

	job, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	// A stale checkpoint updates the step label but never lowers progress.
	require.Equal(t, 50, job.Progress)
	require.Equal(t, "fetching-content", job.CurrentStep)
}

func TestFailJobKeepsLastProgress(t *testing.T) {
	t.Parallel()

	store := NewJobStore(nil)
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, newTestJob("j1")))
	require.NoError(t, store.UpdateProgress(ctx, "j1", "generating-content", 50))
	require.NoError(t, store.FailJob(ctx, "j1", "generation timed out after 3m0s"))

	job, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, pipeline.JobStatusFailed, job.Status)
	require.Equal(t, 50, job.Progress)
	require.Nil(t, job.Result)
	require.Equal(t, "generation timed out after 3m0s", job.ErrorMessage)
}

func TestTerminalStatesAbsorb(t *testing.T) {
	t.Parallel()

	store := NewJobStore(nil)
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, newTestJob("j1")))
	require.NoError(t, store.CompleteJob(ctx, "j1", &pipeline.ContentBundle{Title: "T"}))

	require.ErrorIs(t, store.UpdateProgress(ctx, "j1", "late", 10), ErrTerminal)
	require.ErrorIs(t, store.FailJob(ctx, "j1", "late failure"), ErrTerminal)
	require.ErrorIs(t, store.CompleteJob(ctx, "j1", nil), ErrTerminal)

	job, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, pipeline.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
}

func TestGetJobUnknownID(t *testing.T) {
	t.Parallel()

	store := NewJobStore(nil)
	_, err := store.GetJob(context.Background(), "nope")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestCreateJobDuplicateID(t *testing.T) {
	t.Parallel()

	store := NewJobStore(nil)
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, newTestJob("j1")))
	require.Error(t, store.CreateJob(ctx, newTestJob("j1")))
}
