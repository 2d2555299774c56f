package main

import (
	"net/http"

	"github.com/rs/zerolog"

	"rpcprovider/internal/cache"
	"rpcprovider/internal/config"
	"rpcprovider/internal/provider"
	"rpcprovider/internal/script"
	"rpcprovider/internal/target"
	"rpcprovider/internal/transport"
)

// app holds everything a command needs
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	provider *provider.Provider
	closers  []func()
}

// newApp wires the provider from cfg
func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	tr := a.buildTransport()

	opts := []provider.Option{
		provider.WithLogger(logger),
		provider.WithTransport(tr),
		provider.WithMaxConcurrentChunks(cfg.MaxConcurrentChunks),
		provider.WithRequestFunc(a.applyConfigHeaders(authFromConfig(cfg.Auth))),
	}

	if cfg.EndpointScript != "" {
		ep, err := script.LoadEndpoint(cfg.EndpointScript, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, provider.WithEndpointFunc(ep.Func()))
	} else {
		endpoint := cfg.Endpoint
		opts = append(opts, provider.WithEndpointFunc(func(target.Target) string { return endpoint }))
	}

	if cfg.IsCacheEnabled() {
		mc, err := cache.NewMemoryCache(cfg.Cache.Size, cfg.Cache.GetTTLDuration())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, mc.Close)
		opts = append(opts, provider.WithCache(mc, cache.NewRules(cfg.Cache.DisabledMethods)))
	}

	a.provider = provider.NewProvider(opts...)
	return a, nil
}

// buildTransport stacks retry over the circuit breaker over the base transport
func (a *app) buildTransport() transport.Transport {
	cfg := a.cfg

	var base transport.Transport
	switch cfg.Transport {
	case config.TransportWS:
		ws := transport.NewWebSocket(transport.WebSocketConfig{
			URL:            cfg.Endpoint,
			MessageTimeout: cfg.GetRequestTimeoutDuration(),
			Logger:         a.logger,
		})
		a.closers = append(a.closers, ws.Close)
		base = ws
	default:
		h := transport.NewHTTP(transport.HTTPConfig{
			Timeout: cfg.GetRequestTimeoutDuration(),
			Logger:  a.logger,
		})
		a.closers = append(a.closers, h.Close)
		base = h
	}

	if cfg.IsCircuitBreakerEnabled() {
		cb := cfg.CircuitBreaker
		base = transport.NewBreaker(base, transport.CircuitBreakerConfig{
			Enabled:             true,
			FailureThreshold:    cb.FailureThreshold,
			RecoveryTimeout:     cb.GetRecoveryTimeoutDuration(),
			HalfOpenMaxRequests: cb.HalfOpenMaxRequests,
		})
	}

	if cfg.IsRetryEnabled() {
		base = transport.NewRetry(base, transport.RetryConfig{
			Enabled:     true,
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     cfg.Retry.GetBackoffDuration(),
		}, a.logger)
	}

	return base
}

// applyConfigHeaders adds configured headers and auth to every exchange
func (a *app) applyConfigHeaders(auth *target.AuthMethod) provider.RequestFunc {
	headers := a.cfg.Headers
	return func(_ target.Target, ex *transport.Exchange) *transport.Exchange {
		if ex.Header == nil {
			ex.Header = http.Header{}
		}
		for k, v := range headers {
			ex.Header.Set(k, v)
		}
		auth.Apply(ex.Header)
		return ex
	}
}

// authFromConfig maps the auth section to an AuthMethod, nil for none
func authFromConfig(c *config.AuthConfig) *target.AuthMethod {
	if c == nil {
		return nil
	}
	switch c.Type {
	case config.AuthBasic:
		return target.Basic(c.Username, c.Password)
	case config.AuthBearer:
		return target.Bearer(c.Token)
	case config.AuthHeader:
		return target.HeaderAPIKey(c.Header, c.Key)
	default:
		return nil
	}
}

// logStats reports provider counters at debug level
func (a *app) logStats() {
	stats := a.provider.Stats()
	a.logger.Debug().
		Uint64("requests", stats.Requests).
		Uint64("failures", stats.Failures).
		Uint64("cacheHits", stats.CacheHits).
		Msg("provider stats")
}

// Close releases transports and caches
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
