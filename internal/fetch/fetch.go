// Package fetch is the page-fetch collaborator. The transport owns its own
// timeout; retries around a fetch belong to the sequential downloader.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves one raw document by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is the production Fetcher.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher builds a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

var _ Fetcher = (*HTTPFetcher)(nil)

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch %s: http %d: %s", url, resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

// Func adapts a function to the Fetcher interface, mostly for tests.
type Func func(ctx context.Context, url string) ([]byte, error)

func (f Func) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }
