package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
)

// ErrTransport marks network failures and non-success statuses
var ErrTransport = errors.New("transport error")

// Exchange is one outbound request, fully resolved
type Exchange struct {
	Method string
	URL    string
	Header http.Header
	Query  url.Values
	Body   []byte
}

// Response is the raw reply of one exchange
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs a single exchange. Implementations must be safe for
// concurrent use; the provider issues chunk exchanges in parallel.
type Transport interface {
	Execute(ctx context.Context, ex *Exchange) (*Response, error)
}

// Func adapts a function to Transport
type Func func(ctx context.Context, ex *Exchange) (*Response, error)

// Execute calls f
func (f Func) Execute(ctx context.Context, ex *Exchange) (*Response, error) {
	return f(ctx, ex)
}

// StatusError is returned for a non-2xx reply
type StatusError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, string(e.Body))
}

// Unwrap lets errors.Is match ErrTransport
func (e *StatusError) Unwrap() error {
	return ErrTransport
}

// Stats holds exchange counters
type Stats struct {
	requests atomic.Uint64
	failures atomic.Uint64
}

// IncrementRequests counts one exchange attempt
func (s *Stats) IncrementRequests() {
	s.requests.Add(1)
}

// IncrementFailures counts one failed exchange
func (s *Stats) IncrementFailures() {
	s.failures.Add(1)
}

// Requests returns the number of exchanges attempted
func (s *Stats) Requests() uint64 {
	return s.requests.Load()
}

// Failures returns the number of failed exchanges
func (s *Stats) Failures() uint64 {
	return s.failures.Load()
}
