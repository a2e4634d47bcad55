// Package wphost talks to the page host's WordPress-style authoring API:
// content reads by slug, internal-link candidates, and content publishing.
package wphost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pagelift/optimizer/internal/pipeline"
)

// DefaultLinkLimit bounds internal-link catalog lookups.
const DefaultLinkLimit = 100

// Config controls host access.
type Config struct {
	BaseURL     string
	Username    string
	AppPassword string
	Timeout     time.Duration
}

// Client implements pipeline.ContentSource, pipeline.LinkCatalog and
// pipeline.PublishTarget against one host.
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

type renderedField struct {
	Rendered string `json:"rendered"`
}

type contentItem struct {
	ID      int           `json:"id"`
	Slug    string        `json:"slug"`
	Link    string        `json:"link"`
	Title   renderedField `json:"title"`
	Content renderedField `json:"content"`
}

// FetchContent reads a page's current title and body by slug. It tries the
// posts endpoint first and falls back to pages; NotFoundError when neither
// matches. Read-only.
func (c *Client) FetchContent(ctx context.Context, slug string) (pipeline.PageContent, error) {
	for _, contentType := range []string{"posts", "pages"} {
		items, err := c.queryBySlug(ctx, contentType, slug)
		if err != nil {
			return pipeline.PageContent{}, err
		}
		if len(items) > 0 {
			item := items[0]
			return pipeline.PageContent{
				HostID:  item.ID,
				Title:   item.Title.Rendered,
				Content: item.Content.Rendered,
			}, nil
		}
	}
	return pipeline.PageContent{}, &pipeline.NotFoundError{Slug: slug}
}

// ListLinks returns up to limit known pages as internal-link candidates,
// excluding the page being optimized. Lookup failure yields an empty list:
// internal links are an enhancement, not a correctness requirement.
func (c *Client) ListLinks(ctx context.Context, excludeHostID int, limit int) []pipeline.InternalLink {
	if limit <= 0 || limit > DefaultLinkLimit {
		limit = DefaultLinkLimit
	}
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/posts?per_page=%d&_fields=id,slug,link,title", c.base(), limit)
	items, err := c.fetchItems(ctx, endpoint)
	if err != nil {
		c.logger.Warn("internal link lookup failed", zap.Error(err))
		return nil
	}
	links := make([]pipeline.InternalLink, 0, len(items))
	for _, item := range items {
		if item.ID == excludeHostID {
			continue
		}
		links = append(links, pipeline.InternalLink{
			URL:   item.Link,
			Slug:  item.Slug,
			Title: item.Title.Rendered,
		})
	}
	return links
}

// Publish pushes finished content back to the host.
func (c *Client) Publish(ctx context.Context, hostID int, title, content, status string) error {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/posts/%d", c.base(), hostID)
	body, err := json.Marshal(map[string]string{
		"title":   title,
		"content": content,
		"status":  status,
	})
	if err != nil {
		return fmt.Errorf("marshal publish payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish content: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return &pipeline.AuthError{Reason: fmt.Sprintf("host rejected credentials (status %d)", resp.StatusCode)}
	default:
		return &pipeline.FetchError{URL: endpoint, StatusCode: resp.StatusCode}
	}
}

func (c *Client) queryBySlug(ctx context.Context, contentType, slug string) ([]contentItem, error) {
	endpoint := fmt.Sprintf("%s/wp-json/wp/v2/%s?slug=%s", c.base(), contentType, slug)
	return c.fetchItems(ctx, endpoint)
}

func (c *Client) fetchItems(ctx context.Context, endpoint string) ([]contentItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build host request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("host request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &pipeline.AuthError{Reason: fmt.Sprintf("host rejected credentials (status %d)", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &pipeline.FetchError{URL: endpoint, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read host response: %w", err)
	}
	var items []contentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode host response: %w", err)
	}
	return items, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.AppPassword)
	}
}

func (c *Client) base() string {
	return strings.TrimRight(c.cfg.BaseURL, "/")
}
