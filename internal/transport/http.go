package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout is used when HTTPConfig.Timeout is zero
const DefaultTimeout = 30 * time.Second

// HTTPConfig configures the HTTP transport
type HTTPConfig struct {
	Timeout time.Duration
	Logger  zerolog.Logger
}

// HTTP sends exchanges over a shared http.Client
type HTTP struct {
	client *http.Client
	stats  Stats
	logger zerolog.Logger
}

// NewHTTP creates an HTTP transport with its own connection pool
func NewHTTP(cfg HTTPConfig) *HTTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	return &HTTP{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: cfg.Logger.With().Str("component", "http").Logger(),
	}
}

// NewHTTPWithClient wraps an existing client
func NewHTTPWithClient(client *http.Client, logger zerolog.Logger) *HTTP {
	return &HTTP{
		client: client,
		logger: logger.With().Str("component", "http").Logger(),
	}
}

// Stats returns the exchange counters
func (h *HTTP) Stats() *Stats {
	return &h.stats
}

// Execute performs the exchange. Non-2xx replies return a *StatusError.
func (h *HTTP) Execute(ctx context.Context, ex *Exchange) (*Response, error) {
	target, err := withQuery(ex.URL, ex.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url %q: %v", ErrTransport, ex.URL, err)
	}

	var body io.Reader
	if len(ex.Body) > 0 {
		body = bytes.NewReader(ex.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, ex.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create HTTP request: %v", ErrTransport, err)
	}
	for k, values := range ex.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	h.stats.IncrementRequests()

	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.stats.IncrementFailures()
		return nil, fmt.Errorf("%w: HTTP request failed: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		h.stats.IncrementFailures()
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.stats.IncrementFailures()
		h.logger.Debug().
			Str("url", ex.URL).
			Int("status", resp.StatusCode).
			Msg("non-success status")
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// Close releases idle connections
func (h *HTTP) Close() {
	h.client.CloseIdleConnections()
}

// withQuery merges query values into rawURL
func withQuery(rawURL string, query url.Values) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, values := range query {
		for _, v := range values {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
