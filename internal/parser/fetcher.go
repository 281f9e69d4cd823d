package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// ErrFetch is matched by every FetchError via errors.Is.
var ErrFetch = errors.New("document fetch failed")

// FetchError reports that the API document could not be retrieved or decoded.
// It aborts the run.
type FetchError struct {
	Source string
	Cause  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("could not load API document from %s: %v", e.Source, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrFetch.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Fetcher retrieves the raw bytes of an API document.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// WellKnownLocations are tried, in order, when discovery is enabled and the
// configured document path cannot be fetched.
var WellKnownLocations = []string{
	"/swagger/v1/swagger.json",
	"/swagger.json",
	"/v1/swagger.json",
	"/api/swagger.json",
	"/api/v1/swagger.json",
	"/swagger/v1/swagger",
	"/swagger",
}

// HTTPFetcher fetches documents from the service under test
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

// NewHTTPFetcher creates a fetcher for documents served below baseURL.
// A nil client uses http.DefaultClient.
func NewHTTPFetcher(baseURL string, client *http.Client, headers map[string]string) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		headers: headers,
	}
}

// Fetch retrieves path relative to the base URL, or path itself when it is an absolute URL
func (f *HTTPFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = f.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// FileFetcher reads documents from the local filesystem
type FileFetcher struct{}

// Fetch reads the file at path.
func (FileFetcher) Fetch(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}
