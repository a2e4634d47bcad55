package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pagelift/optimizer/internal/pipeline"
)

const (
	anthropicDefaultBase = "https://api.anthropic.com/v1"
	anthropicVersion     = "2023-06-01"
	anthropicMaxTokens   = 8192
)

// anthropic speaks the messages envelope; the system prompt rides in a
// dedicated top-level field and auth uses the x-api-key header.
type anthropic struct {
	baseURL string
}

func newAnthropic(baseURL string) *anthropic {
	if baseURL == "" {
		baseURL = anthropicDefaultBase
	}
	return &anthropic{baseURL: baseURL}
}

func (p *anthropic) name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *anthropic) generate(
	ctx context.Context,
	client *http.Client,
	req pipeline.GenerationRequest,
) (pipeline.GenerationResult, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     req.Model,
		MaxTokens: anthropicMaxTokens,
		System:    req.SystemPrompt,
		Messages: []chatMessage{
			{Role: "user", Content: req.UserPrompt},
		},
	})
	if err != nil {
		return pipeline.GenerationResult{}, fmt.Errorf("marshal anthropic request: %w", err)
	}

	url := p.baseURL + "/messages"
	status, data, err := postJSON(ctx, client, url, map[string]string{
		"x-api-key":         req.APIKey,
		"anthropic-version": anthropicVersion,
	}, body)
	if err != nil {
		return pipeline.GenerationResult{}, err
	}
	if status != http.StatusOK {
		return pipeline.GenerationResult{}, statusError(url, status)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return pipeline.GenerationResult{}, fmt.Errorf("decode anthropic response: %w", err)
	}
	text := ""
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return pipeline.GenerationResult{}, fmt.Errorf("anthropic response contained no text blocks")
	}
	return pipeline.GenerationResult{
		Text:       text,
		TokensUsed: parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}, nil
}
