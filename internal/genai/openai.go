package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pagelift/optimizer/internal/pipeline"
)

const openAIDefaultBase = "https://api.openai.com/v1"

// openAI speaks the chat-completions envelope with bearer auth.
type openAI struct {
	baseURL string
}

func newOpenAI(baseURL string) *openAI {
	if baseURL == "" {
		baseURL = openAIDefaultBase
	}
	return &openAI{baseURL: baseURL}
}

func (p *openAI) name() string { return "openai" }

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *openAI) generate(
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
		return pipeline.GenerationResult{}, fmt.Errorf("marshal openai request: %w", err)
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
		return pipeline.GenerationResult{}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return pipeline.GenerationResult{}, fmt.Errorf("openai response contained no choices")
	}
	return pipeline.GenerationResult{
		Text:       parsed.Choices[0].Message.Content,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}
