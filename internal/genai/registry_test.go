package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pagelift/optimizer/internal/pipeline"
)

func testRequest(provider string) pipeline.GenerationRequest {
	return pipeline.GenerationRequest{
		ProviderID:   provider,
		APIKey:       "test-key",
		Model:        "test-model",
		SystemPrompt: "system",
		UserPrompt:   "user",
		Timeout:      5 * time.Second,
	}
}

func TestGenerateMissingKeyIsAuthErrorBeforeNetwork(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no network call expected")
	}))
	defer srv.Close()

	reg := NewRegistry(nil, map[string]string{"openai": srv.URL})
	req := testRequest("openai")
	req.APIKey = "   "

	_, err := reg.Generate(context.Background(), req)
	var authErr *pipeline.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestGenerateUnknownProvider(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil, nil)
	_, err := reg.Generate(context.Background(), testRequest("mystery"))
	require.ErrorContains(t, err, "unknown generative provider")
}

func TestGenerateOpenAI(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "test-model", body.Model)
		require.Len(t, body.Messages, 2)
		require.Equal(t, "system", body.Messages[0].Role)

		fmt.Fprint(w, `{"choices":[{"message":{"content":"generated text"}}],"usage":{"total_tokens":1234}}`)
	}))
	defer srv.Close()

	reg := NewRegistry(nil, map[string]string{"openai": srv.URL})
	result, err := reg.Generate(context.Background(), testRequest("openai"))
	require.NoError(t, err)
	require.Equal(t, "generated text", result.Text)
	require.Equal(t, 1234, result.TokensUsed)
}

func TestGenerateAnthropic(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NotEmpty(t, r.Header.Get("anthropic-version"))

		fmt.Fprint(w, `{"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}],`+
			`"usage":{"input_tokens":100,"output_tokens":200}}`)
	}))
	defer srv.Close()

	reg := NewRegistry(nil, map[string]string{"anthropic": srv.URL})
	result, err := reg.Generate(context.Background(), testRequest("anthropic"))
	require.NoError(t, err)
	require.Equal(t, "part one part two", result.Text)
	require.Equal(t, 300, result.TokensUsed)
}

func TestGenerateGemini(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "test-model")
		require.Equal(t, "test-key", r.URL.Query().Get("key"))

		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"gemini text"}]}}],`+
			`"usageMetadata":{"totalTokenCount":42}}`)
	}))
	defer srv.Close()

	reg := NewRegistry(nil, map[string]string{"gemini": srv.URL})
	result, err := reg.Generate(context.Background(), testRequest("gemini"))
	require.NoError(t, err)
	require.Equal(t, "gemini text", result.Text)
	require.Equal(t, 42, result.TokensUsed)
}

func TestGenerateDeepSeek(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"deepseek text"}}],"usage":{"total_tokens":7}}`)
	}))
	defer srv.Close()

	reg := NewRegistry(nil, map[string]string{"deepseek": srv.URL})
	result, err := reg.Generate(context.Background(), testRequest("deepseek"))
	require.NoError(t, err)
	require.Equal(t, "deepseek text", result.Text)
}

func TestGenerateRejectedCredentials(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	reg := NewRegistry(nil, map[string]string{"openai": srv.URL})
	_, err := reg.Generate(context.Background(), testRequest("openai"))
	var authErr *pipeline.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestGenerateServerErrorIsFetchError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	reg := NewRegistry(nil, map[string]string{"openai": srv.URL})
	_, err := reg.Generate(context.Background(), testRequest("openai"))
	var fetchErr *pipeline.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
}

func TestGenerateTimeoutIsTimeoutError(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	reg := NewRegistry(nil, map[string]string{"openai": srv.URL})
	req := testRequest("openai")
	req.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := reg.Generate(context.Background(), req)
	var timeoutErr *pipeline.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, 50*time.Millisecond, timeoutErr.Budget)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestProviders(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil, nil)
	require.ElementsMatch(t, []string{"openai", "anthropic", "gemini", "deepseek"}, reg.Providers())
}
