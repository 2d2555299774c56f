package config

import "time"

// Transport kinds
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

// Auth kinds
const (
	AuthNone   = ""
	AuthBasic  = "basic"
	AuthBearer = "bearer"
	AuthHeader = "header"
)

// Config represents the main configuration structure
type Config struct {
	Endpoint            string            `json:"endpoint" yaml:"endpoint"`
	Transport           string            `json:"transport" yaml:"transport"`
	LogLevel            string            `json:"logLevel" yaml:"logLevel"`
	LogFile             string            `json:"logFile" yaml:"logFile"`
	RequestTimeout      int               `json:"requestTimeout" yaml:"requestTimeout"` // ms
	ChunkSize           int               `json:"chunkSize" yaml:"chunkSize"`           // 0 sends one batch
	MaxConcurrentChunks int               `json:"maxConcurrentChunks" yaml:"maxConcurrentChunks"`
	Headers             map[string]string `json:"headers" yaml:"headers"`
	EndpointScript      string            `json:"endpointScript" yaml:"endpointScript"`
	Auth                *AuthConfig       `json:"auth,omitempty" yaml:"auth,omitempty"`
	Retry               *RetryConfig      `json:"retry,omitempty" yaml:"retry,omitempty"`
	CircuitBreaker      *BreakerConfig    `json:"circuitBreaker,omitempty" yaml:"circuitBreaker,omitempty"`
	Cache               *CacheConfig      `json:"cache,omitempty" yaml:"cache,omitempty"`
}

// AuthConfig selects the authentication scheme
type AuthConfig struct {
	Type     string  `json:"type" yaml:"type"`
	Username string  `json:"username" yaml:"username"`
	Password *string `json:"password" yaml:"password"`
	Token    string  `json:"token" yaml:"token"`
	Header   string  `json:"header" yaml:"header"`
	Key      string  `json:"key" yaml:"key"`
}

// RetryConfig represents retry configuration
type RetryConfig struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	MaxAttempts int  `json:"maxAttempts" yaml:"maxAttempts"`
	Backoff     int  `json:"backoff" yaml:"backoff"` // ms
}

// BreakerConfig represents circuit breaker configuration
type BreakerConfig struct {
	Enabled             bool `json:"enabled" yaml:"enabled"`
	FailureThreshold    int  `json:"failureThreshold" yaml:"failureThreshold"`
	RecoveryTimeout     int  `json:"recoveryTimeout" yaml:"recoveryTimeout"` // ms
	HalfOpenMaxRequests int  `json:"halfOpenMaxRequests" yaml:"halfOpenMaxRequests"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Enabled         bool     `json:"enabled" yaml:"enabled"`
	TTL             int      `json:"ttl" yaml:"ttl"`   // seconds
	Size            int      `json:"size" yaml:"size"` // number of entries
	DisabledMethods []string `json:"disabledMethods" yaml:"disabledMethods"`
}

// Default values
const (
	DefaultEndpoint                = "https://rpc.ankr.com/eth"
	DefaultTransport               = TransportHTTP
	DefaultLogLevel                = "info"
	DefaultRequestTimeout          = 30000 // ms
	DefaultMaxConcurrentChunks     = 0     // unlimited
	DefaultRetryMaxAttempts        = 3
	DefaultRetryBackoff            = 100   // ms
	DefaultBreakerFailureThreshold = 5
	DefaultBreakerRecoveryTimeout  = 30000 // ms
	DefaultBreakerHalfOpenRequests = 2
	DefaultCacheTTL                = 60 // seconds
	DefaultCacheSize               = 10000
)

// GetRequestTimeoutDuration returns request timeout as time.Duration
func (c *Config) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

// IsRetryEnabled returns true if retry is configured and enabled
func (c *Config) IsRetryEnabled() bool {
	return c.Retry != nil && c.Retry.Enabled
}

// IsCircuitBreakerEnabled returns true if the breaker is configured and enabled
func (c *Config) IsCircuitBreakerEnabled() bool {
	return c.CircuitBreaker != nil && c.CircuitBreaker.Enabled
}

// IsCacheEnabled returns true if cache is configured and enabled
func (c *Config) IsCacheEnabled() bool {
	return c.Cache != nil && c.Cache.Enabled
}

// GetBackoffDuration returns the retry backoff as time.Duration
func (r *RetryConfig) GetBackoffDuration() time.Duration {
	return time.Duration(r.Backoff) * time.Millisecond
}

// GetRecoveryTimeoutDuration returns the recovery timeout as time.Duration
func (b *BreakerConfig) GetRecoveryTimeoutDuration() time.Duration {
	return time.Duration(b.RecoveryTimeout) * time.Millisecond
}

// GetTTLDuration returns cache TTL as time.Duration
func (c *CacheConfig) GetTTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}
