// Package sitemap resolves sitemap URLs into candidate page lists.
package sitemap

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/pagelift/optimizer/internal/metrics"
	"github.com/pagelift/optimizer/internal/pipeline"
)

// maxDepth caps sitemap-index recursion. Nested indexes beyond this depth
// are silently ignored.
const maxDepth = 3

const acceptHeader = "application/xml, text/xml, */*"

// Config controls resolver behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Resolver expands a sitemap URL (possibly a sitemap-of-sitemaps) into an
// ordered, deduplicated list of page URLs.
type Resolver struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds a Resolver.
func New(cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Resolver{
		cfg: cfg,
		client: &http.Client{
			Timeout:   timeout,
			Transport: newHTTPTransport(),
		},
		logger: logger,
	}
}

// Resolve fetches url and every nested sitemap it references, returning
// page URLs in first-seen order with exact-match duplicates removed.
// A failing nested sitemap contributes no URLs but never aborts siblings.
func (r *Resolver) Resolve(ctx context.Context, url string) ([]string, error) {
	visited := make(map[string]struct{})
	seen := make(map[string]struct{})
	var pages []string

	if err := r.walk(ctx, url, 0, visited, seen, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (r *Resolver) walk(
	ctx context.Context,
	url string,
	depth int,
	visited map[string]struct{},
	seen map[string]struct{},
	pages *[]string,
) error {
	if depth > maxDepth {
		return nil
	}
	if _, ok := visited[url]; ok {
		return nil
	}
	visited[url] = struct{}{}

	doc, err := r.fetchDocument(ctx, url)
	if err != nil {
		return err
	}

	if nested := xmlquery.Find(doc, "//sitemap/loc"); len(nested) > 0 {
		for _, loc := range nested {
			child := strings.TrimSpace(loc.InnerText())
			if child == "" {
				continue
			}
			// A failing branch is logged and skipped; siblings still run.
			if err := r.walk(ctx, child, depth+1, visited, seen, pages); err != nil {
				r.logger.Warn("nested sitemap failed",
					zap.String("sitemap", child),
					zap.Error(err),
				)
			}
		}
		return nil
	}

	for _, loc := range xmlquery.Find(doc, "//url/loc") {
		page := strings.TrimSpace(loc.InnerText())
		if page == "" || LooksLikeSitemap(page) {
			continue
		}
		if _, dup := seen[page]; dup {
			continue
		}
		seen[page] = struct{}{}
		*pages = append(*pages, page)
	}
	return nil
}

func (r *Resolver) fetchDocument(ctx context.Context, url string) (*xmlquery.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build sitemap request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	if r.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	metrics.ObserveSitemapFetch(resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		return nil, &pipeline.FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body := io.Reader(resp.Body)
	if strings.HasSuffix(strings.ToLower(strings.SplitN(url, "?", 2)[0]), ".gz") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gunzip sitemap %s: %w", url, err)
		}
		defer func() {
			_ = gz.Close()
		}()
		body = gz
	}

	doc, err := xmlquery.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", url, err)
	}
	return doc, nil
}

// LooksLikeSitemap reports whether a discovered URL is itself a sitemap
// file and should be excluded from page results.
func LooksLikeSitemap(url string) bool {
	lower := strings.ToLower(strings.SplitN(url, "?", 2)[0])
	if strings.HasSuffix(lower, ".gz") {
		lower = strings.TrimSuffix(lower, ".gz")
	}
	base := lower
	if idx := strings.LastIndex(lower, "/"); idx >= 0 {
		base = lower[idx+1:]
	}
	return strings.Contains(base, "sitemap") && (strings.HasSuffix(base, ".xml") || base == "sitemap")
}

// Limit truncates pages to at most limit entries. A limit of zero keeps
// everything.
func Limit(pages []string, limit int) []string {
	if limit <= 0 || len(pages) <= limit {
		return pages
	}
	return pages[:limit]
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
