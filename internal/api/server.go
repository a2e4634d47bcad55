// Package api exposes the HTTP interface for the optimizer service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pagelift/optimizer/internal/config"
	"github.com/pagelift/optimizer/internal/metrics"
	"github.com/pagelift/optimizer/internal/orchestrator"
	"github.com/pagelift/optimizer/internal/pipeline"
	"github.com/pagelift/optimizer/internal/wphost"
)

// Server wires HTTP handlers to the orchestrator and stores.
type Server struct {
	router     chi.Router
	orch       *orchestrator.Orchestrator
	jobStore   pipeline.JobStore
	candidates pipeline.CandidateStore
	target     pipeline.PublishTarget
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	orch *orchestrator.Orchestrator,
	jobStore pipeline.JobStore,
	candidates pipeline.CandidateStore,
	target pipeline.PublishTarget,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		orch:       orch,
		jobStore:   jobStore,
		candidates: candidates,
		target:     target,
		cfg:        cfg,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Post("/publish", s.publishJob)
			})
		})
		r.Post("/sitemap/crawl", s.submitCrawl)
		r.Get("/candidates", s.listCandidates)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

type submitJobRequest struct {
	PageRef    string `json:"page_ref"`
	Slug       string `json:"slug"`
	Keyword    string `json:"keyword"`
	ProviderID string `json:"provider"`
	Model      string `json:"model"`
	APIKey     string `json:"api_key"`
	MinWords   int    `json:"min_words"`
	MaxWords   int    `json:"max_words"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Slug) == "" && strings.TrimSpace(req.PageRef) == "" {
		s.writeError(w, http.StatusBadRequest, "slug or page_ref required")
		return
	}
	if strings.TrimSpace(req.ProviderID) == "" {
		s.writeError(w, http.StatusBadRequest, "provider_id required")
		return
	}
	params := pipeline.JobParameters{
		PageRef:    req.PageRef,
		Slug:       req.Slug,
		Keyword:    req.Keyword,
		ProviderID: req.ProviderID,
		Model:      req.Model,
		APIKey:     req.APIKey,
		MinWords:   req.MinWords,
		MaxWords:   req.MaxWords,
	}
	if params.PageRef == "" {
		params.PageRef = params.Slug
	}
	jobID, err := s.orch.SubmitOptimize(r.Context(), params)
	if err != nil {
		if errors.Is(err, orchestrator.ErrRateLimited) {
			s.writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID}, s.logger)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, ok := s.lookupJob(w, r, jobID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job, s.logger)
}

// lookupJob fetches a job and writes the error response itself when the
// job is missing (404) or the store fails (500).
func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request, jobID string) (pipeline.Job, bool) {
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err == nil {
		return job, true
	}
	if errors.Is(err, pipeline.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return pipeline.Job{}, false
	}
	s.logger.Error("job lookup failed", zap.String("job_id", jobID), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "job lookup failed")
	return pipeline.Job{}, false
}

type publishJobRequest struct {
	PageID int    `json:"page_id"`
	Status string `json:"status"`
}

// publishJob pushes a completed job's bundle back to the page host. The
// caller names the destination page; content status defaults to draft.
func (s *Server) publishJob(w http.ResponseWriter, r *http.Request) {
	if s.target == nil {
		s.writeError(w, http.StatusNotImplemented, "publishing is not configured")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	job, ok := s.lookupJob(w, r, jobID)
	if !ok {
		return
	}
	if job.Status != pipeline.JobStatusCompleted || job.Result == nil {
		s.writeError(w, http.StatusConflict, "job has no publishable result")
		return
	}
	var req publishJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PageID <= 0 {
		s.writeError(w, http.StatusBadRequest, "page_id required")
		return
	}
	status := req.Status
	if status == "" {
		status = "draft"
	}
	html := wphost.RenderHTML(*job.Result)
	if err := s.target.Publish(r.Context(), req.PageID, job.Result.Title, html, status); err != nil {
		var authErr *pipeline.AuthError
		if errors.As(err, &authErr) {
			s.writeError(w, http.StatusBadGateway, "host rejected credentials")
			return
		}
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "page_id": req.PageID, "status": status}, s.logger)
}

type crawlRequest struct {
	SitemapURL string `json:"sitemap_url"`
	Limit      int    `json:"limit"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.SitemapURL) == "" {
		s.writeError(w, http.StatusBadRequest, "sitemap_url required")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.Sitemap.CandidateLimit
	}
	jobID, err := s.orch.SubmitCrawl(r.Context(), req.SitemapURL, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID}, s.logger)
}

func (s *Server) listCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.candidates.ListCandidates(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list candidates")
		return
	}
	if candidates == nil {
		candidates = []pipeline.PageCandidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates}, s.logger)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg}, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}
