package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pagelift/optimizer/internal/pipeline"
)

const geminiDefaultBase = "https://generativelanguage.googleapis.com/v1beta"

// gemini speaks generateContent; the model rides in the path, the key in a
// query parameter, and the system prompt in systemInstruction.
type gemini struct {
	baseURL string
}

func newGemini(baseURL string) *gemini {
	if baseURL == "" {
		baseURL = geminiDefaultBase
	}
	return &gemini{baseURL: baseURL}
}

func (p *gemini) name() string { return "gemini" }

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (p *gemini) generate(
	ctx context.Context,
	client *http.Client,
	req pipeline.GenerationRequest,
) (pipeline.GenerationResult, error) {
	body, err := json.Marshal(geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.UserPrompt}}},
		},
	})
	if err != nil {
		return pipeline.GenerationResult{}, fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf(
		"%s/models/%s:generateContent?key=%s",
		p.baseURL,
		url.PathEscape(req.Model),
		url.QueryEscape(req.APIKey),
	)
	status, data, err := postJSON(ctx, client, endpoint, nil, body)
	if err != nil {
		return pipeline.GenerationResult{}, err
	}
	if status != http.StatusOK {
		// Strip the key from the URL surfaced in errors.
		return pipeline.GenerationResult{}, statusError(p.baseURL+"/models/"+req.Model, status)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return pipeline.GenerationResult{}, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return pipeline.GenerationResult{}, fmt.Errorf("gemini response contained no candidates")
	}
	text := ""
	for _, part := range parsed.Candidates[0].Content.Parts {
		text += part.Text
	}
	return pipeline.GenerationResult{
		Text:       text,
		TokensUsed: parsed.UsageMetadata.TotalTokenCount,
	}, nil
}
