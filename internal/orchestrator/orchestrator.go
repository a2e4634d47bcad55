// Package orchestrator sequences the optimization pipeline and owns every
// write to the job record.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pagelift/optimizer/internal/keyword"
	"github.com/pagelift/optimizer/internal/metrics"
	"github.com/pagelift/optimizer/internal/pipeline"
	"github.com/pagelift/optimizer/internal/prompt"
	"github.com/pagelift/optimizer/internal/quality"
	"github.com/pagelift/optimizer/internal/respparse"
	"github.com/pagelift/optimizer/internal/sitemap"
	"github.com/pagelift/optimizer/internal/wphost"
)

// Checkpoint labels and progress values for the pipeline stages.
const (
	stepFetchingContent    = "fetching-content"
	stepDerivingKeyword    = "deriving-keyword"
	stepFetchingLinks      = "fetching-links"
	stepFetchingInsights   = "fetching-insights"
	stepWaitingInsights    = "waiting-insights"
	stepGeneratingContent  = "generating-content"
	stepProcessingResponse = "processing-response"
	stepValidating         = "validating"
	stepSaving             = "saving"
)

// Config controls Orchestrator behavior.
type Config struct {
	GenerationTimeout   time.Duration
	InsightPollAttempts int
	InsightPollInterval time.Duration
	LinkLimit           int
	MinWordsDefault     int
	MaxWordsDefault     int
	EventTopic          string
	BlobPrefix          string
	ArchiveRawText      bool
}

// Orchestrator drives jobs through the pipeline. Each job runs as one
// background goroutine; stages within a job are strictly sequential.
type Orchestrator struct {
	jobStore   pipeline.JobStore
	candidates pipeline.CandidateStore
	content    pipeline.ContentSource
	links      pipeline.LinkCatalog
	insights   pipeline.InsightSource
	generator  pipeline.Generator
	publisher  pipeline.Publisher
	blobs      pipeline.BlobStore
	hasher     pipeline.Hasher
	clock      pipeline.Clock
	idGen      pipeline.IDGenerator
	resolver   *sitemap.Resolver
	guard      *SubmitGuard
	cfg        Config
	logger     *zap.Logger
}

// New constructs an Orchestrator. insights, publisher, blobs and resolver
// may be nil; the corresponding sub-steps are skipped.
func New(
	jobStore pipeline.JobStore,
	candidates pipeline.CandidateStore,
	content pipeline.ContentSource,
	links pipeline.LinkCatalog,
	insights pipeline.InsightSource,
	generator pipeline.Generator,
	publisher pipeline.Publisher,
	blobs pipeline.BlobStore,
	hasher pipeline.Hasher,
	clock pipeline.Clock,
	idGen pipeline.IDGenerator,
	resolver *sitemap.Resolver,
	guard *SubmitGuard,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 180 * time.Second
	}
	if cfg.InsightPollAttempts <= 0 {
		cfg.InsightPollAttempts = 10
	}
	if cfg.InsightPollInterval <= 0 {
		cfg.InsightPollInterval = 8 * time.Second
	}
	if cfg.MinWordsDefault <= 0 {
		cfg.MinWordsDefault = 2000
	}
	if cfg.MaxWordsDefault < cfg.MinWordsDefault {
		cfg.MaxWordsDefault = cfg.MinWordsDefault + 1000
	}
	if cfg.BlobPrefix == "" {
		cfg.BlobPrefix = "generations"
	}
	return &Orchestrator{
		jobStore:   jobStore,
		candidates: candidates,
		content:    content,
		links:      links,
		insights:   insights,
		generator:  generator,
		publisher:  publisher,
		blobs:      blobs,
		hasher:     hasher,
		clock:      clock,
		idGen:      idGen,
		resolver:   resolver,
		guard:      guard,
		cfg:        cfg,
		logger:     logger,
	}
}

// SubmitOptimize creates a job record, dispatches the pipeline in the
// background, and returns the job id immediately. A duplicate submit for
// the same page inside the idempotency TTL returns the existing job id
// without dispatching a second pipeline.
func (o *Orchestrator) SubmitOptimize(ctx context.Context, params pipeline.JobParameters) (string, error) {
	dedupeKey := keyword.FirstNonEmpty(params.PageRef, params.Slug)
	if o.guard != nil {
		if existing, dup := o.guard.Existing(dedupeKey); dup {
			return existing, nil
		}
		if err := o.guard.Allow(ctx); err != nil {
			return "", err
		}
	}

	if params.MinWords <= 0 {
		params.MinWords = o.cfg.MinWordsDefault
	}
	if params.MaxWords < params.MinWords {
		params.MaxWords = o.cfg.MaxWordsDefault
	}

	jobID, err := o.createJob(ctx, params.PageRef, params)
	if err != nil {
		return "", err
	}
	if o.guard != nil {
		o.guard.Remember(dedupeKey, jobID)
	}

	// The pipeline outlives the submitting request; stopping a poller
	// never cancels a dispatched job.
	go o.runOptimize(context.WithoutCancel(ctx), jobID, params)
	return jobID, nil
}

// SubmitCrawl creates a discovery job that resolves a sitemap into page
// candidates, replacing every non-completed candidate when it finishes.
func (o *Orchestrator) SubmitCrawl(ctx context.Context, sitemapURL string, limit int) (string, error) {
	if o.resolver == nil {
		return "", fmt.Errorf("sitemap resolver is not configured")
	}
	jobID, err := o.createJob(ctx, sitemapURL, pipeline.JobParameters{PageRef: sitemapURL})
	if err != nil {
		return "", err
	}
	go o.runCrawl(context.WithoutCancel(ctx), jobID, sitemapURL, limit)
	return jobID, nil
}

func (o *Orchestrator) createJob(ctx context.Context, pageRef string, params pipeline.JobParameters) (string, error) {
	jobID, err := o.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	job := pipeline.Job{
		ID:         jobID,
		PageRef:    pageRef,
		Status:     pipeline.JobStatusPending,
		Parameters: params,
		CreatedAt:  o.clock.Now(),
	}
	if err := o.jobStore.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	return jobID, nil
}

func (o *Orchestrator) runOptimize(ctx context.Context, jobID string, params pipeline.JobParameters) {
	o.markCandidate(ctx, params.PageRef, pipeline.CandidateOptimizing)
	bundle, err := o.executePipeline(ctx, jobID, params)
	if err != nil {
		o.failJob(ctx, jobID, params.PageRef, err)
		return
	}

	o.checkpoint(ctx, jobID, stepSaving, 95)
	if err := o.jobStore.CompleteJob(ctx, jobID, bundle); err != nil {
		o.logger.Error("complete job failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	o.markCandidate(ctx, params.PageRef, pipeline.CandidateCompleted)
	score := bundle.QualityScore
	o.enrichCandidate(ctx, params.PageRef, pipeline.CandidateEnrichment{Score: &score})
	metrics.ObserveJob(string(pipeline.JobStatusCompleted))
	o.publishEvent(ctx, pipeline.Event{
		JobID:        jobID,
		Status:       pipeline.JobStatusCompleted,
		PageRef:      params.PageRef,
		QualityScore: bundle.QualityScore,
		SEOScore:     bundle.SEOScore,
		At:           o.clock.Now(),
	})
	o.logger.Info("job completed",
		zap.String("job_id", jobID),
		zap.Int("quality_score", bundle.QualityScore),
		zap.Int("word_count", bundle.WordCount),
	)
}

// executePipeline runs the hard stages. Any returned error is job-fatal;
// optional sub-steps swallow their own failures.
func (o *Orchestrator) executePipeline(
	ctx context.Context,
	jobID string,
	params pipeline.JobParameters,
) (*pipeline.ContentBundle, error) {
	o.checkpoint(ctx, jobID, stepFetchingContent, 10)
	stageStart := o.clock.Now()
	page, err := o.content.FetchContent(ctx, params.Slug)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage(stepFetchingContent, o.clock.Now().Sub(stageStart))
	stats := wphost.AnalyzeBody(page.Content)
	o.enrichCandidate(ctx, params.PageRef, pipeline.CandidateEnrichment{
		Title:     page.Title,
		WordCount: stats.WordCount,
	})

	o.checkpoint(ctx, jobID, stepDerivingKeyword, 15)
	kw := keyword.FirstNonEmpty(params.Keyword, keyword.Derive(page.Title, params.Slug))

	o.checkpoint(ctx, jobID, stepFetchingLinks, 20)
	var links []pipeline.InternalLink
	if o.links != nil {
		links = o.links.ListLinks(ctx, page.HostID, o.cfg.LinkLimit)
	}

	insights := o.awaitInsights(ctx, jobID, kw)

	o.checkpoint(ctx, jobID, stepGeneratingContent, 50)
	prompts := prompt.Build(prompt.Spec{
		MinWords:      params.MinWords,
		MaxWords:      params.MaxWords,
		Keyword:       kw,
		SourceTitle:   page.Title,
		SourceContent: stats.Text,
		InternalLinks: links,
		Insights:      insights,
	})
	generated, err := o.generator.Generate(ctx, pipeline.GenerationRequest{
		ProviderID:   params.ProviderID,
		APIKey:       params.APIKey,
		Model:        params.Model,
		SystemPrompt: prompts.SystemPrompt,
		UserPrompt:   prompts.UserPrompt,
		Timeout:      o.cfg.GenerationTimeout,
	})
	if err != nil {
		return nil, err
	}

	o.checkpoint(ctx, jobID, stepProcessingResponse, 80)
	o.archiveRawText(ctx, jobID, generated.Text)
	candidate, err := respparse.Parse(generated.Text)
	if err != nil {
		return nil, err
	}

	o.checkpoint(ctx, jobID, stepValidating, 90)
	bundle := &pipeline.ContentBundle{
		Title:           candidate.Title,
		MetaDescription: candidate.MetaDescription,
		Headings:        candidate.Headings,
		BodySections:    candidate.BodySections,
	}
	bundle.WordCount = quality.CountWords(*bundle)
	if bundle.WordCount == 0 {
		bundle.WordCount = len(strings.Fields(candidate.OptimizedContent))
	}
	validation := quality.Validate(*bundle, params.MinWords)
	bundle.SEOScore = validation.Score
	bundle.QualityScore = quality.Score(*bundle, params.MinWords)
	bundle.ReadabilityScore = readabilityScore(*bundle)
	if len(validation.Issues) > 0 {
		// Structural issues downgrade the score but never fail the job.
		o.logger.Warn("validation issues",
			zap.String("job_id", jobID),
			zap.Strings("issues", validation.Issues),
		)
	}
	return bundle, nil
}

// awaitInsights runs the optional insight sub-step. It polls up to the
// configured attempt budget and returns nil when insights are unavailable;
// it never fails the job.
func (o *Orchestrator) awaitInsights(ctx context.Context, jobID, kw string) *pipeline.Insights {
	if o.insights == nil {
		return nil
	}
	o.checkpoint(ctx, jobID, stepFetchingInsights, 25)

	for attempt := 1; attempt <= o.cfg.InsightPollAttempts; attempt++ {
		result, err := o.insights.GetInsights(ctx, kw)
		if err != nil {
			o.logger.Warn("insight lookup failed, continuing without insights",
				zap.String("job_id", jobID),
				zap.Error(err),
			)
			return nil
		}
		if result != nil {
			return result
		}
		if attempt == o.cfg.InsightPollAttempts {
			break
		}

		progress := 25 + attempt*2
		if progress > 45 {
			progress = 45
		}
		o.checkpoint(ctx, jobID, stepWaitingInsights, progress)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(o.cfg.InsightPollInterval):
		}
	}
	o.logger.Info("insight poll budget exhausted, proceeding without insights",
		zap.String("job_id", jobID),
	)
	return nil
}

func (o *Orchestrator) runCrawl(ctx context.Context, jobID, sitemapURL string, limit int) {
	o.checkpoint(ctx, jobID, "resolving-sitemap", 10)
	pages, err := o.resolver.Resolve(ctx, sitemapURL)
	if err != nil {
		o.failJob(ctx, jobID, "", err)
		return
	}
	pages = sitemap.Limit(pages, limit)

	o.checkpoint(ctx, jobID, "storing-candidates", 80)
	now := o.clock.Now()
	candidates := make([]pipeline.PageCandidate, 0, len(pages))
	for _, page := range pages {
		candidates = append(candidates, pipeline.PageCandidate{
			URL:          page,
			Slug:         slugFromURL(page),
			Status:       pipeline.CandidateDiscovered,
			DiscoveredAt: now,
		})
	}
	if o.candidates != nil {
		if err := o.candidates.ReplaceCandidates(ctx, candidates); err != nil {
			o.failJob(ctx, jobID, "", err)
			return
		}
	}

	// Discovery jobs carry no content bundle; their artifact is the
	// refreshed candidate set.
	if err := o.jobStore.CompleteJob(ctx, jobID, nil); err != nil {
		o.logger.Error("complete crawl job failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	metrics.ObserveJob(string(pipeline.JobStatusCompleted))
	o.logger.Info("sitemap crawl completed",
		zap.String("job_id", jobID),
		zap.Int("candidates", len(candidates)),
	)
}

func (o *Orchestrator) checkpoint(ctx context.Context, jobID, step string, progress int) {
	if err := o.jobStore.UpdateProgress(ctx, jobID, step, progress); err != nil {
		o.logger.Error("checkpoint write failed",
			zap.String("job_id", jobID),
			zap.String("step", step),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) failJob(ctx context.Context, jobID, pageRef string, cause error) {
	if err := o.jobStore.FailJob(ctx, jobID, cause.Error()); err != nil {
		o.logger.Error("fail job status update", zap.String("job_id", jobID), zap.Error(err))
	}
	o.markCandidate(ctx, pageRef, pipeline.CandidateFailed)
	metrics.ObserveJob(string(pipeline.JobStatusFailed))
	o.publishEvent(ctx, pipeline.Event{
		JobID:     jobID,
		Status:    pipeline.JobStatusFailed,
		PageRef:   pageRef,
		ErrorText: cause.Error(),
		At:        o.clock.Now(),
	})
	o.logger.Error("job failed", zap.String("job_id", jobID), zap.Error(cause))
}

func (o *Orchestrator) markCandidate(ctx context.Context, pageRef string, status pipeline.CandidateStatus) {
	if o.candidates == nil || pageRef == "" {
		return
	}
	if err := o.candidates.UpdateCandidateStatus(ctx, pageRef, status); err != nil {
		o.logger.Debug("candidate status update skipped",
			zap.String("page_ref", pageRef),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) enrichCandidate(ctx context.Context, pageRef string, e pipeline.CandidateEnrichment) {
	if o.candidates == nil || pageRef == "" {
		return
	}
	if err := o.candidates.EnrichCandidate(ctx, pageRef, e); err != nil {
		o.logger.Debug("candidate enrichment skipped",
			zap.String("page_ref", pageRef),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) publishEvent(ctx context.Context, evt pipeline.Event) {
	if o.publisher == nil || o.cfg.EventTopic == "" {
		return
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.EventTopic, evt); err != nil {
		o.logger.Warn("event publish failed", zap.String("job_id", evt.JobID), zap.Error(err))
	}
}

func (o *Orchestrator) archiveRawText(ctx context.Context, jobID, text string) {
	if o.blobs == nil || !o.cfg.ArchiveRawText {
		return
	}
	data := []byte(text)
	name := jobID
	if o.hasher != nil {
		if hash, err := o.hasher.Hash(data); err == nil {
			name = fmt.Sprintf("%s/%s", jobID, hash)
		}
	}
	path := fmt.Sprintf("%s/%s.txt", strings.Trim(o.cfg.BlobPrefix, "/"), name)
	uri, err := o.blobs.PutObject(ctx, path, "text/plain; charset=utf-8", data)
	if err != nil {
		o.logger.Warn("raw text archive failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	o.logger.Debug("raw text archived", zap.String("job_id", jobID), zap.String("blob_uri", uri))
}

// readabilityScore is a rough sentence-length heuristic over paragraph
// sections: shorter average sentences read easier.
func readabilityScore(bundle pipeline.ContentBundle) int {
	words := 0
	sentences := 0
	for _, s := range bundle.BodySections {
		if s.Type != pipeline.SectionParagraph && s.Type != pipeline.SectionSummary {
			continue
		}
		words += len(strings.Fields(s.Content))
		sentences += strings.Count(s.Content, ".") + strings.Count(s.Content, "!") + strings.Count(s.Content, "?")
	}
	if sentences == 0 || words == 0 {
		return 50
	}
	avg := words / sentences
	switch {
	case avg <= 14:
		return 90
	case avg <= 20:
		return 75
	case avg <= 28:
		return 60
	default:
		return 40
	}
}

func slugFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
