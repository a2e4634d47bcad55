package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/optimizer/internal/pipeline"
)

func TestCreateJobInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewJobStore(mock)
	now := time.Unix(1700000000, 0).UTC()

	job := pipeline.Job{
		ID:      "job-1",
		PageRef: "cold-brew",
		Status:  pipeline.JobStatusPending,
		Parameters: pipeline.JobParameters{
			PageRef:    "cold-brew",
			Slug:       "cold-brew",
			ProviderID: "openai",
			MinWords:   2000,
			MaxWords:   3000,
		},
		CreatedAt: now,
	}

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(
			job.ID,
			job.PageRef,
			job.Status,
			job.Progress,
			job.CurrentStep,
			[]byte(`{"page_ref":"cold-brew","slug":"cold-brew","provider":"openai","model":"","min_words":2000,"max_words":3000}`),
			job.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobDecodesResult(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewJobStore(mock)
	now := time.Unix(1700000000, 0).UTC()

	rows := pgxmock.NewRows([]string{
		"id", "page_ref", "status", "progress", "current_step",
		"result", "error_message", "created_at", "started_at", "completed_at",
	}).AddRow(
		"job-1", "cold-brew", pipeline.JobStatusCompleted, 100, "completed",
		[]byte(`{"title":"T","quality_score":90}`), "", now, &now, &now,
	)
	mock.ExpectQuery("SELECT (.+) FROM jobs").WithArgs("job-1").WillReturnRows(rows)

	job, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, pipeline.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	require.Equal(t, "T", job.Result.Title)
	require.Equal(t, 90, job.Result.QualityScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewJobStore(mock)
	rows := pgxmock.NewRows([]string{
		"id", "page_ref", "status", "progress", "current_step",
		"result", "error_message", "created_at", "started_at", "completed_at",
	})
	mock.ExpectQuery("SELECT (.+) FROM jobs").WithArgs("missing").WillReturnRows(rows)

	_, err = store.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProgressGuardsTerminalRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewJobStore(mock)
	mock.ExpectExec("UPDATE jobs").
		WithArgs(pipeline.JobStatusRunning, "generating-content", 50, "job-1", pipeline.JobStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.UpdateProgress(context.Background(), "job-1", "generating-content", 50)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteJobWritesResult(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewJobStore(mock)
	mock.ExpectExec("UPDATE jobs").
		WithArgs(pipeline.JobStatusCompleted, pgxmock.AnyArg(), "job-1", pipeline.JobStatusFailed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.CompleteJob(context.Background(), "job-1", &pipeline.ContentBundle{Title: "T"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailJobWritesErrorText(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewJobStore(mock)
	mock.ExpectExec("UPDATE jobs").
		WithArgs(pipeline.JobStatusFailed, "parse generator output: missing required field \"title\"", "job-1", pipeline.JobStatusCompleted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.FailJob(context.Background(), "job-1", `parse generator output: missing required field "title"`)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
