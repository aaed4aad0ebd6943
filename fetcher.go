package linkaudit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Fetcher retrieves page bodies. The error is diagnostic only: Auditor.FetchContent
// folds it into an absent result.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (string, error)
}

// FetchError describes why a fetch produced no content
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

// Unwrap lets errors.Is match ErrContentUnavailable
func (e *FetchError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrContentUnavailable, e.Err}
	}
	return []error{ErrContentUnavailable}
}

// HTTPFetcher fetches content with a single GET and no retries
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewHTTPFetcher creates a fetcher reading at most maxBytes of each body
func NewHTTPFetcher(client *http.Client, userAgent string, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{client: client, userAgent: userAgent, maxBytes: maxBytes}
}

// Fetch returns the body of a 2xx response, or a *FetchError
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	targetURL = strings.TrimSpace(targetURL)
	if targetURL == "" {
		return "", &FetchError{URL: targetURL, Err: fmt.Errorf("empty URL")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", &FetchError{URL: targetURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchError{URL: targetURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", &FetchError{URL: targetURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	return string(data), nil
}
