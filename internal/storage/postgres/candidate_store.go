package postgres

import (
	"context"
	"fmt"

	"github.com/pagelift/optimizer/internal/pipeline"
)

// CandidateStore implements pipeline.CandidateStore using Postgres.
type CandidateStore struct {
	db DB
}

// NewCandidateStore creates a CandidateStore over an existing pool or mock.
func NewCandidateStore(db DB) *CandidateStore {
	return &CandidateStore{db: db}
}

// ReplaceCandidates deletes every non-completed candidate and inserts the
// fresh crawl result, skipping URLs already completed.
func (s *CandidateStore) ReplaceCandidates(ctx context.Context, candidates []pipeline.PageCandidate) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM page_candidates WHERE status <> $1;`,
		pipeline.CandidateCompleted,
	); err != nil {
		return fmt.Errorf("failed to clear candidates: %w", err)
	}

	query := `
		INSERT INTO page_candidates
			(url, slug, title, word_count, categories, tags, featured_image, status, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (url) DO NOTHING;
	`
	for _, c := range candidates {
		if _, err := s.db.Exec(ctx, query,
			c.URL, c.Slug, c.Title, c.WordCount, c.Categories, c.Tags,
			c.FeaturedImage, c.Status, c.DiscoveredAt,
		); err != nil {
			return fmt.Errorf("failed to insert candidate: %w", err)
		}
	}
	return nil
}

// ListCandidates returns all stored candidates in discovery order.
func (s *CandidateStore) ListCandidates(ctx context.Context) ([]pipeline.PageCandidate, error) {
	query := `
		SELECT url, slug, title, word_count, categories, tags, featured_image, score, status, discovered_at
		FROM page_candidates
		ORDER BY discovered_at, url;
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var out []pipeline.PageCandidate
	for rows.Next() {
		var c pipeline.PageCandidate
		if err := rows.Scan(
			&c.URL,
			&c.Slug,
			&c.Title,
			&c.WordCount,
			&c.Categories,
			&c.Tags,
			&c.FeaturedImage,
			&c.Score,
			&c.Status,
			&c.DiscoveredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// EnrichCandidate fills in metadata learned while optimizing a candidate.
// Zero-valued fields keep their stored value.
func (s *CandidateStore) EnrichCandidate(
	ctx context.Context,
	url string,
	e pipeline.CandidateEnrichment,
) error {
	query := `
		UPDATE page_candidates
		SET title = CASE WHEN $1 <> '' THEN $1 ELSE title END,
		    word_count = CASE WHEN $2 > 0 THEN $2 ELSE word_count END,
		    score = COALESCE($3, score)
		WHERE url = $4;
	`
	tag, err := s.db.Exec(ctx, query, e.Title, e.WordCount, e.Score, url)
	if err != nil {
		return fmt.Errorf("failed to enrich candidate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCandidateStatus transitions one candidate by URL.
func (s *CandidateStore) UpdateCandidateStatus(
	ctx context.Context,
	url string,
	status pipeline.CandidateStatus,
) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE page_candidates SET status = $1 WHERE url = $2;`,
		status, url,
	)
	if err != nil {
		return fmt.Errorf("failed to update candidate status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
