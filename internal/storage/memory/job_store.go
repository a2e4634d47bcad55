// Package memory provides in-memory store implementations for
// development and testing.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pagelift/optimizer/internal/pipeline"
)

// ErrJobNotFound is returned when a job ID has no record.
var ErrJobNotFound = fmt.Errorf("job %w", pipeline.ErrNotFound)

// ErrTerminal is returned when a write targets a job that already reached
// a terminal status.
var ErrTerminal = errors.New("job is terminal")

// JobStore provides an in-memory pipeline.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]pipeline.Job
	now  func() time.Time
}

// NewJobStore constructs a JobStore.
func NewJobStore(clock pipeline.Clock) *JobStore {
	now := time.Now
	if clock != nil {
		now = clock.Now
	}
	return &JobStore{
		jobs: make(map[string]pipeline.Job),
		now:  now,
	}
}

// CreateJob stores a new job in pending status.
func (s *JobStore) CreateJob(_ context.Context, job pipeline.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (pipeline.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pipeline.Job{}, ErrJobNotFound
	}
	return job, nil
}

// UpdateProgress records a checkpoint. The first checkpoint moves the job
// from pending to running and stamps StartedAt.
func (s *JobStore) UpdateProgress(_ context.Context, jobID string, step string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return ErrTerminal
	}
	if job.Status == pipeline.JobStatusPending {
		job.Status = pipeline.JobStatusRunning
		started := s.now().UTC()
		job.StartedAt = &started
	}
	job.CurrentStep = step
	if progress > job.Progress {
		job.Progress = progress
	}
	s.jobs[jobID] = job
	return nil
}

// CompleteJob stores the result and marks the job completed at 100%.
func (s *JobStore) CompleteJob(_ context.Context, jobID string, result *pipeline.ContentBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return ErrTerminal
	}
	job.Status = pipeline.JobStatusCompleted
	job.Progress = 100
	job.CurrentStep = "completed"
	job.Result = result
	job.ErrorMessage = ""
	done := s.now().UTC()
	job.CompletedAt = &done
	s.jobs[jobID] = job
	return nil
}

// FailJob records the error text and marks the job failed. Progress is
// left at its last checkpoint; only completed jobs reach 100.
func (s *JobStore) FailJob(_ context.Context, jobID string, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return ErrTerminal
	}
	job.Status = pipeline.JobStatusFailed
	job.CurrentStep = "failed"
	job.Result = nil
	job.ErrorMessage = errText
	done := s.now().UTC()
	job.CompletedAt = &done
	s.jobs[jobID] = job
	return nil
}
