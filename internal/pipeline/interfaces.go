package pipeline

import (
	"context"
	"time"
)

// JobStore persists job records. The orchestrator is the only writer for
// any given job ID; API handlers read.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	UpdateProgress(ctx context.Context, jobID string, step string, progress int) error
	CompleteJob(ctx context.Context, jobID string, result *ContentBundle) error
	FailJob(ctx context.Context, jobID string, errText string) error
}

// CandidateStore persists pages discovered by sitemap crawls.
type CandidateStore interface {
	ReplaceCandidates(ctx context.Context, candidates []PageCandidate) error
	ListCandidates(ctx context.Context) ([]PageCandidate, error)
	UpdateCandidateStatus(ctx context.Context, url string, status CandidateStatus) error
	EnrichCandidate(ctx context.Context, url string, enrichment CandidateEnrichment) error
}

// ContentSource reads a page's current title and body from its host.
type ContentSource interface {
	FetchContent(ctx context.Context, slug string) (PageContent, error)
}

// LinkCatalog supplies bounded internal-link candidates. Implementations
// return an empty list on lookup failure rather than an error.
type LinkCatalog interface {
	ListLinks(ctx context.Context, excludeHostID int, limit int) []InternalLink
}

// InsightSource queries the third-party keyword tool. A nil result with a
// nil error means the query is still processing.
type InsightSource interface {
	GetInsights(ctx context.Context, keyword string) (*Insights, error)
}

// Generator invokes a text-generation backend and normalizes its response.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// Publisher pushes job lifecycle events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// PublishTarget pushes finished content back to the page host.
type PublishTarget interface {
	Publish(ctx context.Context, hostID int, title, content, status string) error
}

// Hasher computes digests for blob naming/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
