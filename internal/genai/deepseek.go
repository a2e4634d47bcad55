package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pagelift/optimizer/internal/pipeline"
)

const deepSeekDefaultBase = "https://api.deepseek.com/v1"

// deepSeek is chat-completions compatible but kept as its own strategy so
// endpoint or envelope drift never leaks into the openai path.
type deepSeek struct {
	baseURL string
}

func newDeepSeek(baseURL string) *deepSeek {
	if baseURL == "" {
		baseURL = deepSeekDefaultBase
	}
	return &deepSeek{baseURL: baseURL}
}

func (p *deepSeek) name() string { return "deepseek" }

func (p *deepSeek) generate(
	ctx context.Context,
	client *http.Client,
	req pipeline.GenerationRequest,
) (pipeline.GenerationResult, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
	})
	if err != nil {
		return pipeline.GenerationResult{}, fmt.Errorf("marshal deepseek request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	status, data, err := postJSON(ctx, client, url, map[string]string{
		"Authorization": "Bearer " + req.APIKey,
	}, body)
	if err != nil {
		return pipeline.GenerationResult{}, err
	}
	if status != http.StatusOK {
		return pipeline.GenerationResult{}, statusError(url, status)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return pipeline.GenerationResult{}, fmt.Errorf("decode deepseek response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return pipeline.GenerationResult{}, fmt.Errorf("deepseek response contained no choices")
	}
	return pipeline.GenerationResult{
		Text:       parsed.Choices[0].Message.Content,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}
