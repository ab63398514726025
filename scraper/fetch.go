package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newscorpus/metrics"
)

// ErrFetchFailure is returned when a page cannot be retrieved or the server
// answers with a non-200 status.
var ErrFetchFailure = errors.New("fetch failed")

// maxBodySize is the largest response body accepted. Larger bodies fail
// rather than being parsed truncated.
const maxBodySize = 10 << 20

// Page is a fetched response body.
type Page struct {
	URL         string
	ContentType string
	Body        []byte
}

// Document parses the page body as HTML.
func (p *Page) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Fetcher performs GET requests against the target site.
type Fetcher struct {
	client    *http.Client
	userAgent string
	metrics   *metrics.Metrics
}

// NewFetcher creates a fetcher with the given per-request timeout. m may be
// nil.
func NewFetcher(timeout time.Duration, userAgent string, m *metrics.Metrics) *Fetcher {
	return NewFetcherWithClient(&http.Client{Timeout: timeout}, userAgent, m)
}

// NewFetcherWithClient creates a fetcher that sends its requests through
// client.
func NewFetcherWithClient(client *http.Client, userAgent string, m *metrics.Metrics) *Fetcher {
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		metrics:   m,
	}
}

// Fetch retrieves url. kind labels the request in metrics (see
// metrics.KindSeed and metrics.KindArticle). Every failure wraps
// ErrFetchFailure.
func (f *Fetcher) Fetch(ctx context.Context, url, kind string) (*Page, error) {
	start := time.Now()
	page, err := f.fetch(ctx, url)
	f.metrics.ObserveFetch(kind, time.Since(start).Seconds(), err)
	return page, err
}

func (f *Fetcher) fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrFetchFailure, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d for %s", ErrFetchFailure, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %w", ErrFetchFailure, err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("%w: body of %s exceeds %d bytes", ErrFetchFailure, url, maxBodySize)
	}

	return &Page{
		URL:         url,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
