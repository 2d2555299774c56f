package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/rs/zerolog"

	"rpcprovider/internal/cache"
	"rpcprovider/internal/jsonrpc"
	"rpcprovider/internal/target"
	"rpcprovider/internal/transport"
)

// EndpointFunc overrides the URL a target is sent to
type EndpointFunc func(target.Target) string

// RequestFunc may rewrite an exchange after headers and auth are resolved
type RequestFunc func(target.Target, *transport.Exchange) *transport.Exchange

// Option configures a Provider
type Option func(*Provider)

// WithTransport sets the transport used for every exchange
func WithTransport(t transport.Transport) Option {
	return func(p *Provider) { p.transport = t }
}

// WithEndpointFunc sets the URL override
func WithEndpointFunc(fn EndpointFunc) Option {
	return func(p *Provider) { p.endpointFn = fn }
}

// WithRequestFunc sets the exchange rewrite hook
func WithRequestFunc(fn RequestFunc) Option {
	return func(p *Provider) { p.requestFn = fn }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithCache enables result caching for Call
func WithCache(c cache.Cache, rules cache.Rules) Option {
	return func(p *Provider) {
		p.cache = c
		p.rules = rules
	}
}

// WithMaxConcurrentChunks limits in-flight chunk exchanges; 0 means no limit
func WithMaxConcurrentChunks(n int) Option {
	return func(p *Provider) { p.maxConcurrentChunks = n }
}

// Stats is a snapshot of provider counters
type Stats struct {
	Requests  uint64
	Failures  uint64
	CacheHits uint64
}

// Provider sends targets through a transport
type Provider struct {
	transport           transport.Transport
	endpointFn          EndpointFunc
	requestFn           RequestFunc
	cache               cache.Cache
	rules               cache.Rules
	maxConcurrentChunks int
	logger              zerolog.Logger

	requests  atomic.Uint64
	failures  atomic.Uint64
	cacheHits atomic.Uint64
}

// NewProvider creates a provider. Without WithTransport it uses an HTTP
// transport with the default timeout.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		cache:  cache.NewNoopCache(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.logger = p.logger.With().Str("component", "provider").Logger()
	if p.transport == nil {
		p.transport = transport.NewHTTP(transport.HTTPConfig{Logger: p.logger})
	}
	return p
}

// RequestURL returns the URL t is sent to, without the query string
func (p *Provider) RequestURL(t target.Target) string {
	if p.endpointFn != nil {
		return p.endpointFn(t)
	}
	return t.BaseURL() + t.Path()
}

// Stats returns a snapshot of the counters
func (p *Provider) Stats() Stats {
	return Stats{
		Requests:  p.requests.Load(),
		Failures:  p.failures.Load(),
		CacheHits: p.cacheHits.Load(),
	}
}

// Request sends t as-is and returns the raw response
func (p *Provider) Request(ctx context.Context, t target.Target) (*transport.Response, error) {
	body, err := t.Body()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return p.send(ctx, p.exchange(t, body.Bytes()))
}

// RequestJSON sends t and decodes the response body into U
func RequestJSON[U any](ctx context.Context, p *Provider, t target.Target) (U, error) {
	var out U
	resp, err := p.Request(ctx, t)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out, nil
}

// Call sends t as a single JSON-RPC call with id 1. Results of cacheable
// calls are served from and stored in the cache.
func (p *Provider) Call(ctx context.Context, t target.JSONRPCTarget) (*jsonrpc.Response, error) {
	req, err := jsonrpc.NewRequest(t.MethodName(), t.Params(), jsonrpc.NewIDInt(1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	cacheable := p.rules.IsCacheable(req.Method, req.Params)
	key := ""
	if cacheable {
		key = cache.GenerateCacheKey(p.RequestURL(t), req.Method, req.Params)
		if cached, ok := p.cache.Get(key); ok {
			p.cacheHits.Add(1)
			p.logger.Debug().Str("method", req.Method).Msg("cache hit")
			return &jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Result: cached}, nil
		}
	}

	body, err := req.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	resp, err := p.send(ctx, p.jsonExchange(t, body))
	if err != nil {
		return nil, err
	}

	rpcResp, err := jsonrpc.ParseResponse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if cacheable && !rpcResp.HasError() && !rpcResp.ResultIsNull() {
		p.cache.Set(key, rpcResp.Result)
	}
	return rpcResp, nil
}

// exchange resolves the URL, headers, query and auth of t
func (p *Provider) exchange(t target.Target, body []byte) *transport.Exchange {
	header := http.Header{}
	for k, v := range t.Headers() {
		header.Set(k, v)
	}
	t.Authentication().Apply(header)

	var query url.Values
	if q := t.Query(); len(q) > 0 {
		query = make(url.Values, len(q))
		for k, v := range q {
			query.Set(k, v)
		}
	}

	ex := &transport.Exchange{
		Method: t.Method().String(),
		URL:    p.RequestURL(t),
		Header: header,
		Query:  query,
		Body:   body,
	}
	if p.requestFn != nil {
		ex = p.requestFn(t, ex)
	}
	return ex
}

// jsonExchange is exchange with a JSON content type unless t sets one
func (p *Provider) jsonExchange(t target.Target, body []byte) *transport.Exchange {
	ex := p.exchange(t, body)
	if ex.Header == nil {
		ex.Header = http.Header{}
	}
	if ex.Header.Get("Content-Type") == "" {
		ex.Header.Set("Content-Type", "application/json")
	}
	return ex
}

func (p *Provider) send(ctx context.Context, ex *transport.Exchange) (*transport.Response, error) {
	p.requests.Add(1)
	resp, err := p.transport.Execute(ctx, ex)
	if err != nil {
		p.failures.Add(1)
		p.logger.Debug().Err(err).Str("url", ex.URL).Msg("exchange failed")
		return nil, err
	}
	return resp, nil
}
