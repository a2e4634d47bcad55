// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagelift/optimizer/internal/pipeline"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = pipeline.ErrNotFound

// DB is the subset of pgxpool.Pool the stores use; pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JobStore implements pipeline.JobStore using Postgres.
type JobStore struct {
	db DB
}

// NewJobStore creates a JobStore over an existing pool or mock.
func NewJobStore(db DB) *JobStore {
	return &JobStore{db: db}
}

// Connect opens a pgx pool for the given DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// CreateJob inserts a new job row.
func (s *JobStore) CreateJob(ctx context.Context, job pipeline.Job) error {
	params, err := json.Marshal(job.Parameters)
	if err != nil {
		return fmt.Errorf("marshal job parameters: %w", err)
	}
	query := `
		INSERT INTO jobs (id, page_ref, status, progress, current_step, parameters, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err = s.db.Exec(ctx, query,
		job.ID, job.PageRef, job.Status, job.Progress, job.CurrentStep, params, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a single job by its ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (pipeline.Job, error) {
	query := `
		SELECT id, page_ref, status, progress, current_step, result, error_message,
		       created_at, started_at, completed_at
		FROM jobs
		WHERE id = $1;
	`
	var (
		job       pipeline.Job
		resultRaw []byte
	)
	err := s.db.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&job.PageRef,
		&job.Status,
		&job.Progress,
		&job.CurrentStep,
		&resultRaw,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.Job{}, ErrNotFound
		}
		return pipeline.Job{}, fmt.Errorf("failed to get job: %w", err)
	}
	if len(resultRaw) > 0 {
		var bundle pipeline.ContentBundle
		if err := json.Unmarshal(resultRaw, &bundle); err != nil {
			return pipeline.Job{}, fmt.Errorf("decode job result: %w", err)
		}
		job.Result = &bundle
	}
	return job, nil
}

// UpdateProgress writes a checkpoint; the first checkpoint also moves the
// job to running and stamps started_at. Terminal rows are never touched.
func (s *JobStore) UpdateProgress(ctx context.Context, jobID string, step string, progress int) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    current_step = $2,
		    progress = GREATEST(progress, $3),
		    started_at = COALESCE(started_at, NOW())
		WHERE id = $4 AND status IN ($5, $1);
	`
	tag, err := s.db.Exec(ctx, query,
		pipeline.JobStatusRunning, step, progress, jobID, pipeline.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteJob stores the result bundle and marks the job completed.
// Discovery jobs complete with a nil bundle, which is stored as SQL NULL so
// reads keep the result-xor-error terminal shape.
func (s *JobStore) CompleteJob(ctx context.Context, jobID string, result *pipeline.ContentBundle) error {
	var data []byte
	if result != nil {
		var err error
		data, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal job result: %w", err)
		}
	}
	query := `
		UPDATE jobs
		SET status = $1, progress = 100, current_step = 'completed',
		    result = $2, error_message = '', completed_at = NOW()
		WHERE id = $3 AND status NOT IN ($4, $1);
	`
	tag, err := s.db.Exec(ctx, query,
		pipeline.JobStatusCompleted, data, jobID, pipeline.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailJob records the error text and marks the job failed.
func (s *JobStore) FailJob(ctx context.Context, jobID string, errText string) error {
	query := `
		UPDATE jobs
		SET status = $1, current_step = 'failed', result = NULL,
		    error_message = $2, completed_at = NOW()
		WHERE id = $3 AND status NOT IN ($4, $1);
	`
	tag, err := s.db.Exec(ctx, query,
		pipeline.JobStatusFailed, errText, jobID, pipeline.JobStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
