package main

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/tripled-io/tripled/pkg/breaker"
	"github.com/tripled-io/tripled/pkg/ratelimit"
	"github.com/tripled-io/tripled/pkg/store"
)

// fileConfig is the on-disk YAML shape. Every field is optional; zero
// values fall through to the package defaults.
type fileConfig struct {
	CacheCapacity int  `yaml:"cache_capacity"`
	Verbose       bool `yaml:"verbose"`

	RateLimit struct {
		MaxRequests             int           `yaml:"max_requests"`
		Window                  time.Duration `yaml:"window"`
		MaxComplexRequests      int           `yaml:"max_complex_requests"`
		BurstAllowance          int           `yaml:"burst_allowance"`
		CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold"`
		CircuitBreakerResetTime time.Duration `yaml:"circuit_breaker_reset_time"`
	} `yaml:"rate_limit"`

	Breaker struct {
		FailureThreshold int           `yaml:"failure_threshold"`
		Cooldown         time.Duration `yaml:"cooldown"`
	} `yaml:"breaker"`
}

// loadConfig reads the YAML config at path. An empty path returns the
// zero config, which selects all defaults.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

func (c fileConfig) storeOptions() store.Options {
	return store.Options{ResultCacheCapacity: c.CacheCapacity}
}

func (c fileConfig) limiterConfig() ratelimit.Config {
	base := ratelimit.DefaultConfig()
	if c.RateLimit.MaxRequests > 0 {
		base.MaxRequests = c.RateLimit.MaxRequests
	}
	if c.RateLimit.Window > 0 {
		base.WindowSize = c.RateLimit.Window
	}
	if c.RateLimit.MaxComplexRequests > 0 {
		base.MaxComplexRequests = c.RateLimit.MaxComplexRequests
	}
	if c.RateLimit.BurstAllowance > 0 {
		base.BurstAllowance = c.RateLimit.BurstAllowance
	}
	if c.RateLimit.CircuitBreakerThreshold > 0 {
		base.CircuitBreakerThreshold = c.RateLimit.CircuitBreakerThreshold
	}
	if c.RateLimit.CircuitBreakerResetTime > 0 {
		base.CircuitBreakerResetTime = c.RateLimit.CircuitBreakerResetTime
	}
	return base
}

func (c fileConfig) breakerConfig() breaker.Config {
	return breaker.Config{
		FailureThreshold: c.Breaker.FailureThreshold,
		Cooldown:         c.Breaker.Cooldown,
	}
}
