package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/pagelift/optimizer/internal/pipeline"
)

// ErrCandidateNotFound is returned when a candidate URL has no record.
var ErrCandidateNotFound = fmt.Errorf("candidate %w", pipeline.ErrNotFound)

// CandidateStore provides an in-memory pipeline.CandidateStore.
type CandidateStore struct {
	mu         sync.RWMutex
	candidates []pipeline.PageCandidate
}

// NewCandidateStore constructs a CandidateStore.
func NewCandidateStore() *CandidateStore {
	return &CandidateStore{}
}

// ReplaceCandidates swaps in a fresh crawl result. Completed candidates
// survive a recrawl; every non-completed one is replaced.
func (s *CandidateStore) ReplaceCandidates(_ context.Context, candidates []pipeline.PageCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]pipeline.PageCandidate, 0, len(s.candidates))
	completed := make(map[string]struct{})
	for _, c := range s.candidates {
		if c.Status == pipeline.CandidateCompleted {
			kept = append(kept, c)
			completed[c.URL] = struct{}{}
		}
	}
	for _, c := range candidates {
		if _, done := completed[c.URL]; done {
			continue
		}
		kept = append(kept, c)
	}
	s.candidates = kept
	return nil
}

// ListCandidates returns all stored candidates.
func (s *CandidateStore) ListCandidates(_ context.Context) ([]pipeline.PageCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.PageCandidate, len(s.candidates))
	copy(out, s.candidates)
	return out, nil
}

// EnrichCandidate fills in metadata learned while optimizing a candidate.
// Zero-valued fields keep their stored value.
func (s *CandidateStore) EnrichCandidate(_ context.Context, url string, e pipeline.CandidateEnrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.candidates {
		if s.candidates[i].URL != url {
			continue
		}
		if e.Title != "" {
			s.candidates[i].Title = e.Title
		}
		if e.WordCount > 0 {
			s.candidates[i].WordCount = e.WordCount
		}
		if e.Score != nil {
			s.candidates[i].Score = e.Score
		}
		return nil
	}
	return ErrCandidateNotFound
}

// UpdateCandidateStatus transitions one candidate by URL.
func (s *CandidateStore) UpdateCandidateStatus(_ context.Context, url string, status pipeline.CandidateStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.candidates {
		if s.candidates[i].URL == url {
			s.candidates[i].Status = status
			return nil
		}
	}
	return ErrCandidateNotFound
}
