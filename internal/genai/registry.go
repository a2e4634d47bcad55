// Package genai provides a uniform interface over text-generation
// backends. Each provider keeps its own endpoint, auth header shape and
// request/response envelope behind a common strategy interface; the
// registry normalizes all of them to {text, tokens used}.
package genai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pagelift/optimizer/internal/metrics"
	"github.com/pagelift/optimizer/internal/pipeline"
)

// DefaultTimeout is the hard cancellation budget applied when the request
// does not carry its own.
const DefaultTimeout = 180 * time.Second

// strategy is implemented once per backend.
type strategy interface {
	// name returns the provider id this strategy serves.
	name() string
	// generate performs the provider-specific HTTP exchange.
	generate(ctx context.Context, client *http.Client, req pipeline.GenerationRequest) (pipeline.GenerationResult, error)
}

// Registry dispatches generation requests to provider strategies.
type Registry struct {
	client     *http.Client
	strategies map[string]strategy
	logger     *zap.Logger
}

// NewRegistry builds a Registry with all supported providers registered.
// baseURLs optionally overrides provider endpoints (used in tests and for
// self-hosted gateways); keys are provider ids.
func NewRegistry(logger *zap.Logger, baseURLs map[string]string) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		// No client-level timeout: the per-call context deadline is the
		// single cancellation authority, so timeouts stay distinguishable.
		client: &http.Client{Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 15 * time.Second,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
		}},
		strategies: make(map[string]strategy),
		logger:     logger,
	}
	base := func(id string) string {
		if baseURLs == nil {
			return ""
		}
		return baseURLs[id]
	}
	r.register(newOpenAI(base("openai")))
	r.register(newAnthropic(base("anthropic")))
	r.register(newGemini(base("gemini")))
	r.register(newDeepSeek(base("deepseek")))
	return r
}

func (r *Registry) register(s strategy) {
	r.strategies[s.name()] = s
}

// Providers lists registered provider ids.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		out = append(out, id)
	}
	return out
}

// Generate invokes the selected provider under a hard cancellation timer.
// A missing API key is an AuthError raised before any network I/O. A
// deadline hit surfaces as TimeoutError, distinguishable from provider
// HTTP failures which surface as FetchError.
func (r *Registry) Generate(ctx context.Context, req pipeline.GenerationRequest) (pipeline.GenerationResult, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return pipeline.GenerationResult{}, &pipeline.AuthError{Reason: "missing API key for provider " + req.ProviderID}
	}
	strat, ok := r.strategies[req.ProviderID]
	if !ok {
		return pipeline.GenerationResult{}, fmt.Errorf("unknown generative provider %q", req.ProviderID)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := strat.generate(callCtx, r.client, req)
	elapsed := time.Since(start)
	if err != nil {
		if callCtx.Err() != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			r.logger.Warn("generation timed out",
				zap.String("provider", req.ProviderID),
				zap.Duration("budget", timeout),
			)
			return pipeline.GenerationResult{}, &pipeline.TimeoutError{Budget: timeout}
		}
		return pipeline.GenerationResult{}, err
	}

	metrics.ObserveGeneration(req.ProviderID, req.Model, elapsed, result.TokensUsed)
	r.logger.Info("generation complete",
		zap.String("provider", req.ProviderID),
		zap.String("model", req.Model),
		zap.Int("tokens", result.TokensUsed),
		zap.Duration("duration", elapsed),
	)
	return result, nil
}

// postJSON is the shared HTTP plumbing for provider strategies.
func postJSON(
	ctx context.Context,
	client *http.Client,
	url string,
	headers map[string]string,
	body []byte,
) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("provider request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read provider response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// statusError maps non-success provider statuses onto the error taxonomy:
// 401/403 are credential rejections, everything else is a fetch failure.
func statusError(url string, status int) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &pipeline.AuthError{Reason: fmt.Sprintf("provider rejected credentials (status %d)", status)}
	}
	return &pipeline.FetchError{URL: url, StatusCode: status}
}
