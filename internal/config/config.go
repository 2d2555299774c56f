package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. RPCPROVIDER_ENDPOINT
const EnvPrefix = "RPCPROVIDER"

// envOverrides lists the settings that may come from the environment
type envOverrides struct {
	Endpoint  string `envconfig:"ENDPOINT"`
	LogLevel  string `envconfig:"LOG_LEVEL"`
	ChunkSize *int   `envconfig:"CHUNK_SIZE"`
	AuthToken string `envconfig:"AUTH_TOKEN"`
}

// Load reads the configuration file, applies environment overrides and
// defaults, and validates the result. An empty path starts from defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := parse(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// parse decodes YAML for .yaml/.yml files and JSON otherwise
func parse(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// applyEnv overlays RPCPROVIDER_* variables onto cfg
func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	if env.Endpoint != "" {
		cfg.Endpoint = env.Endpoint
	}
	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	if env.ChunkSize != nil {
		cfg.ChunkSize = *env.ChunkSize
	}
	if env.AuthToken != "" {
		cfg.Auth = &AuthConfig{Type: AuthBearer, Token: env.AuthToken}
	}
	return nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Transport == "" {
		cfg.Transport = DefaultTransport
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	if cfg.Retry != nil {
		if cfg.Retry.MaxAttempts == 0 {
			cfg.Retry.MaxAttempts = DefaultRetryMaxAttempts
		}
		if cfg.Retry.Backoff == 0 {
			cfg.Retry.Backoff = DefaultRetryBackoff
		}
	}

	if cfg.CircuitBreaker != nil {
		if cfg.CircuitBreaker.FailureThreshold == 0 {
			cfg.CircuitBreaker.FailureThreshold = DefaultBreakerFailureThreshold
		}
		if cfg.CircuitBreaker.RecoveryTimeout == 0 {
			cfg.CircuitBreaker.RecoveryTimeout = DefaultBreakerRecoveryTimeout
		}
		if cfg.CircuitBreaker.HalfOpenMaxRequests == 0 {
			cfg.CircuitBreaker.HalfOpenMaxRequests = DefaultBreakerHalfOpenRequests
		}
	}

	if cfg.Cache != nil {
		if cfg.Cache.TTL == 0 {
			cfg.Cache.TTL = DefaultCacheTTL
		}
		if cfg.Cache.Size == 0 {
			cfg.Cache.Size = DefaultCacheSize
		}
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute URL")
	}

	switch cfg.Transport {
	case TransportHTTP:
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("endpoint scheme must be http or https for transport %q", cfg.Transport)
		}
	case TransportWS:
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("endpoint scheme must be ws or wss for transport %q", cfg.Transport)
		}
	default:
		return fmt.Errorf("transport must be one of: http, ws")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must be non-negative")
	}
	if cfg.ChunkSize < 0 {
		return fmt.Errorf("chunkSize must be non-negative")
	}
	if cfg.MaxConcurrentChunks < 0 {
		return fmt.Errorf("maxConcurrentChunks must be non-negative")
	}

	if cfg.Auth != nil {
		if err := validateAuth(cfg.Auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if cfg.Retry != nil && cfg.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.maxAttempts must be non-negative")
	}

	if cfg.CircuitBreaker != nil && cfg.CircuitBreaker.Enabled {
		if cfg.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("circuitBreaker.failureThreshold must be positive")
		}
		if cfg.CircuitBreaker.RecoveryTimeout <= 0 {
			return fmt.Errorf("circuitBreaker.recoveryTimeout must be positive")
		}
	}

	if cfg.IsCacheEnabled() {
		if cfg.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive when cache is enabled")
		}
		if cfg.Cache.Size <= 0 {
			return fmt.Errorf("cache.size must be positive when cache is enabled")
		}
	}

	return nil
}

func validateAuth(a *AuthConfig) error {
	switch a.Type {
	case AuthNone:
		return nil
	case AuthBasic:
		if a.Username == "" {
			return errors.New("username is required for basic auth")
		}
	case AuthBearer:
		if a.Token == "" {
			return errors.New("token is required for bearer auth")
		}
	case AuthHeader:
		if a.Header == "" || a.Key == "" {
			return errors.New("header and key are required for header auth")
		}
	default:
		return fmt.Errorf("type must be one of: basic, bearer, header")
	}
	return nil
}
