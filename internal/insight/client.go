// Package insight queries a third-party keyword-research tool.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pagelift/optimizer/internal/pipeline"
)

// Config controls the insight client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements pipeline.InsightSource over the insight tool's REST
// contract: find an existing ready query for the keyword, or create one
// and report it as still processing. The orchestrator owns the polling
// loop and its attempt budget.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type queryRecord struct {
	ID      string `json:"id"`
	Keyword string `json:"keyword"`
	Status  string `json:"status"`
	Result  *struct {
		SearchVolume    int      `json:"search_volume"`
		Difficulty      int      `json:"difficulty"`
		RelatedTerms    []string `json:"related_terms"`
		CommonQuestions []string `json:"common_questions"`
	} `json:"result,omitempty"`
}

// GetInsights returns insights for the keyword, or (nil, nil) when the
// query exists but is still processing. A query is created on first call
// for a keyword. Transport and status failures are returned as errors; the
// orchestrator treats them as a skipped sub-step, never job-fatal.
func (c *Client) GetInsights(ctx context.Context, keyword string) (*pipeline.Insights, error) {
	record, found, err := c.findQuery(ctx, keyword)
	if err != nil {
		return nil, err
	}
	if !found {
		if err := c.createQuery(ctx, keyword); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if record.Status != "ready" || record.Result == nil {
		return nil, nil
	}
	return &pipeline.Insights{
		Keyword:         keyword,
		SearchVolume:    record.Result.SearchVolume,
		Difficulty:      record.Result.Difficulty,
		RelatedTerms:    record.Result.RelatedTerms,
		CommonQuestions: record.Result.CommonQuestions,
	}, nil
}

func (c *Client) findQuery(ctx context.Context, keyword string) (queryRecord, bool, error) {
	endpoint := fmt.Sprintf("%s/queries?keyword=%s", strings.TrimRight(c.cfg.BaseURL, "/"), url.QueryEscape(keyword))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return queryRecord{}, false, fmt.Errorf("build insight lookup: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return queryRecord{}, false, fmt.Errorf("insight lookup: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return queryRecord{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return queryRecord{}, false, &pipeline.FetchError{URL: endpoint, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return queryRecord{}, false, fmt.Errorf("read insight lookup: %w", err)
	}
	var records []queryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return queryRecord{}, false, fmt.Errorf("decode insight lookup: %w", err)
	}
	if len(records) == 0 {
		return queryRecord{}, false, nil
	}
	return records[0], true, nil
}

func (c *Client) createQuery(ctx context.Context, keyword string) error {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/queries"
	body, err := json.Marshal(map[string]string{"keyword": keyword})
	if err != nil {
		return fmt.Errorf("marshal insight create: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build insight create: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("insight create: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return &pipeline.FetchError{URL: endpoint, StatusCode: resp.StatusCode}
	}
	c.logger.Debug("insight query created", zap.String("keyword", keyword))
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}
