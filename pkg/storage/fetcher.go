package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// URLFetcher resolves a stored file URL back to its content. URLs owned by
// one of the configured stores are read through the store; anything else is
// fetched over HTTP.
type URLFetcher struct {
	stores []ObjectStore
	client *http.Client
}

func NewURLFetcher(client *http.Client, stores ...ObjectStore) *URLFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &URLFetcher{stores: stores, client: client}
}

// Fetch opens the content at rawURL. Non-2xx HTTP responses are errors.
func (f *URLFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	for _, s := range f.stores {
		if key, ok := s.KeyFromURL(rawURL); ok {
			return s.Get(ctx, key)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}
