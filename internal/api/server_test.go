package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pagelift/optimizer/internal/config"
	"github.com/pagelift/optimizer/internal/orchestrator"
	"github.com/pagelift/optimizer/internal/pipeline"
	publishermemory "github.com/pagelift/optimizer/internal/publisher/memory"
	storagememory "github.com/pagelift/optimizer/internal/storage/memory"
)

const testGeneratedJSON = `{
	"title": "Optimized Title",
	"headings": ["A", "B", "C", "D"],
	"bodySections": [
		{"type": "tldr", "content": "Short version."},
		{"type": "paragraph", "content": "Body paragraph with enough words to register."},
		{"type": "summary", "content": "Summary."}
	]
}`

type stubContent struct{}

func (stubContent) FetchContent(context.Context, string) (pipeline.PageContent, error) {
	return pipeline.PageContent{HostID: 42, Title: "Original Title", Content: "<p>Original body.</p>"}, nil
}

type stubLinks struct{}

func (stubLinks) ListLinks(context.Context, int, int) []pipeline.InternalLink { return nil }

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, pipeline.GenerationRequest) (pipeline.GenerationResult, error) {
	return pipeline.GenerationResult{Text: testGeneratedJSON, TokensUsed: 100}, nil
}

type stubIDs struct{ n atomic.Int64 }

func (g *stubIDs) NewID() (string, error) {
	return fmt.Sprintf("job-%d", g.n.Add(1)), nil
}

type stubClock struct{}

func (stubClock) Now() time.Time { return time.Now().UTC() }

type recordingTarget struct {
	hostID int
	status string
	err    error
}

func newRecordingTarget() *recordingTarget {
	return &recordingTarget{}
}

func (r *recordingTarget) Publish(_ context.Context, hostID int, _, _, status string) error {
	r.hostID = hostID
	r.status = status
	return r.err
}

type testEnv struct {
	server     *Server
	jobs       *storagememory.JobStore
	candidates *storagememory.CandidateStore
	target     *recordingTarget
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	jobs := storagememory.NewJobStore(stubClock{})
	candidates := storagememory.NewCandidateStore()
	target := newRecordingTarget()

	orch := orchestrator.New(
		jobs,
		candidates,
		stubContent{},
		stubLinks{},
		nil,
		stubGenerator{},
		publishermemory.New(),
		nil,
		nil,
		stubClock{},
		&stubIDs{},
		nil,
		nil,
		orchestrator.Config{MinWordsDefault: 10, MaxWordsDefault: 100},
		nil,
	)
	return &testEnv{
		server:     NewServer(orch, jobs, candidates, target, cfg, nil),
		jobs:       jobs,
		candidates: candidates,
		target:     target,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) awaitCompleted(t *testing.T, jobID string) pipeline.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := e.jobs.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("job never completed")
	return pipeline.Job{}
}

func TestSubmitJobAcceptedBeforeCompletion(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := env.do(http.MethodPost, "/v1/jobs",
		`{"slug":"cold-brew","provider":"openai","api_key":"key"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["job_id"])

	job := env.awaitCompleted(t, resp["job_id"])
	require.Equal(t, pipeline.JobStatusCompleted, job.Status)

	poll := env.do(http.MethodGet, "/v1/jobs/"+resp["job_id"], "")
	require.Equal(t, http.StatusOK, poll.Code)
	var polled pipeline.Job
	require.NoError(t, json.Unmarshal(poll.Body.Bytes(), &polled))
	require.Equal(t, pipeline.JobStatusCompleted, polled.Status)
	require.Equal(t, 100, polled.Progress)
	require.NotNil(t, polled.Result)
}

func TestSubmitJobValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})

	rec := env.do(http.MethodPost, "/v1/jobs", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/jobs", `{"provider":"openai"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/jobs", `{"slug":"cold-brew"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := env.do(http.MethodGet, "/v1/jobs/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

type failingJobStore struct{}

func (failingJobStore) CreateJob(context.Context, pipeline.Job) error {
	return errors.New("connection refused")
}

func (failingJobStore) GetJob(context.Context, string) (pipeline.Job, error) {
	return pipeline.Job{}, errors.New("connection refused")
}

func (failingJobStore) UpdateProgress(context.Context, string, string, int) error {
	return errors.New("connection refused")
}

func (failingJobStore) CompleteJob(context.Context, string, *pipeline.ContentBundle) error {
	return errors.New("connection refused")
}

func (failingJobStore) FailJob(context.Context, string, string) error {
	return errors.New("connection refused")
}

func TestGetJobStoreFailure(t *testing.T) {
	t.Parallel()

	// Store failures are not the same as a missing job.
	server := NewServer(nil, failingJobStore{}, storagememory.NewCandidateStore(), nil, config.Config{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/j1", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListCandidates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	require.NoError(t, env.candidates.ReplaceCandidates(context.Background(), []pipeline.PageCandidate{
		{URL: "https://example.com/a", Slug: "a", Status: pipeline.CandidateDiscovered},
	}))

	rec := env.do(http.MethodGet, "/v1/candidates", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Candidates []pipeline.PageCandidate `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Candidates, 1)
	require.Equal(t, "a", resp.Candidates[0].Slug)
}

func TestCrawlRequiresSitemapURL(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := env.do(http.MethodPost, "/v1/sitemap/crawl", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishCompletedJob(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := env.do(http.MethodPost, "/v1/jobs",
		`{"slug":"cold-brew","provider":"openai","api_key":"key"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	env.awaitCompleted(t, resp["job_id"])

	pub := env.do(http.MethodPost, "/v1/jobs/"+resp["job_id"]+"/publish", `{"page_id":42}`)
	require.Equal(t, http.StatusOK, pub.Code)
	require.Equal(t, 42, env.target.hostID)
	require.Equal(t, "draft", env.target.status)
}

func TestPublishPendingJobConflicts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	require.NoError(t, env.jobs.CreateJob(context.Background(), pipeline.Job{
		ID: "pending-1", Status: pipeline.JobStatusPending,
	}))

	rec := env.do(http.MethodPost, "/v1/jobs/pending-1/publish", `{"page_id":42}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	env := newTestEnv(t, cfg)

	rec := env.do(http.MethodGet, "/v1/candidates", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
	req.Header.Set("X-API-Key", "secret")
	ok := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(ok, req)
	require.Equal(t, http.StatusOK, ok.Code)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", "").Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/readyz", "").Code)
}
