package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"api-contract-tester/internal/logger"
	"api-contract-tester/internal/types"
)

// Response is what a transport observed for one request.
type Response struct {
	Status  int
	Body    []byte
	Headers http.Header
}

// Transport performs one request/response exchange with the target service.
type Transport interface {
	Execute(ctx context.Context, req *types.RequestDescriptor) (*Response, error)
}

// RetryConfig holds configuration for retry behavior
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// AuthConfig describes the credentials attached to every request.
// Type is one of "bearer", "basic" (Token is "user:password") or "header".
type AuthConfig struct {
	Type   string
	Token  string
	Header string
}

// TransportConfig holds configuration for HTTPTransport
type TransportConfig struct {
	BaseURL string
	Timeout time.Duration
	Retry   RetryConfig
	Auth    AuthConfig
	// Client overrides the HTTP client built from Timeout.
	Client *http.Client
}

// HTTPTransport executes requests with net/http, retrying network failures
// and 5xx responses.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	retry   RetryConfig
	auth    AuthConfig
	logger  *logger.Logger
}

// NewHTTPTransport creates a transport for the service at cfg.BaseURL.
func NewHTTPTransport(cfg TransportConfig, log *logger.Logger) *HTTPTransport {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Retry.Attempts < 1 {
		cfg.Retry.Attempts = 1
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		retry:   cfg.Retry,
		auth:    cfg.Auth,
		logger:  log,
	}
}

// Execute sends req, retrying according to the retry configuration.
func (t *HTTPTransport) Execute(ctx context.Context, req *types.RequestDescriptor) (*Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		if body, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var (
		resp *Response
		err  error
	)
	for attempt := 1; attempt <= t.retry.Attempts; attempt++ {
		resp, err = t.do(ctx, req, body)
		if err == nil && resp.Status < http.StatusInternalServerError {
			return resp, nil
		}
		if attempt == t.retry.Attempts {
			break
		}
		t.logger.Debugf("%s attempt %d/%d failed, retrying", req.Operation, attempt, t.retry.Attempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.retry.Delay):
		}
	}
	return resp, err
}

func (t *HTTPTransport) do(ctx context.Context, req *types.RequestDescriptor, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.baseURL+req.URL(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	t.authorize(httpReq)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	t.logger.Debugf("Request: %s %s", req.Method, httpReq.URL)
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	t.logger.Debugf("Response: %s %d (%d bytes)", req.Operation, httpResp.StatusCode, len(data))
	return &Response{Status: httpResp.StatusCode, Body: data, Headers: httpResp.Header}, nil
}

func (t *HTTPTransport) authorize(req *http.Request) {
	for k, v := range t.auth.Headers() {
		req.Header.Set(k, v)
	}
}

// Headers returns the request headers carrying the credentials, or nil when
// no token is configured.
func (a AuthConfig) Headers() map[string]string {
	if a.Token == "" {
		return nil
	}
	switch strings.ToLower(a.Type) {
	case "basic":
		return map[string]string{"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(a.Token))}
	case "header":
		name := a.Header
		if name == "" {
			name = "X-API-Key"
		}
		return map[string]string{name: a.Token}
	default:
		return map[string]string{"Authorization": "Bearer " + a.Token}
	}
}
