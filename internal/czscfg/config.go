// Package czscfg loads and validates the analyzer's YAML configuration,
// mirroring the cascading load-then-validate shape of providers.go.
package czscfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MACDConfig holds the EMA periods used by the MACD indicator.
type MACDConfig struct {
	Fast   int `yaml:"fast"`
	Slow   int `yaml:"slow"`
	Signal int `yaml:"signal"`
}

// BollConfig holds the period and stddev multiplier used by the Bollinger
// band indicator.
type BollConfig struct {
	Period int     `yaml:"period"`
	K      float64 `yaml:"k"`
}

// SnapshotConfig configures the to_frame result cache (internal/snapshot).
type SnapshotConfig struct {
	CacheTTLSecs int    `yaml:"cache_ttl_secs"`
	RedisAddr    string `yaml:"redis_addr"`
}

// HTTPConfig configures the read-only HTTP/WS surface (internal/httpapi).
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the root analyzer configuration document.
type Config struct {
	MinBiK    int        `yaml:"min_bi_k"`
	MaxRawLen int        `yaml:"max_raw_len"`
	MAParams  []int      `yaml:"ma_params"`
	MACD      MACDConfig `yaml:"macd"`
	Boll      BollConfig `yaml:"boll"`
	Verbose   bool       `yaml:"verbose"`

	Snapshot SnapshotConfig `yaml:"snapshot"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		MinBiK:    5,
		MaxRawLen: 10_000,
		MAParams:  []int{5, 20, 60},
		MACD:      MACDConfig{Fast: 12, Slow: 26, Signal: 9},
		Boll:      BollConfig{Period: 20, K: 2},
		Snapshot:  SnapshotConfig{CacheTTLSecs: 30, RedisAddr: ""},
		HTTP:      HTTPConfig{ListenAddr: ":8090"},
	}
}

// Load reads and validates a YAML configuration file. A missing file falls
// back to Default(); a malformed file or an out-of-range value is returned as
// a plain error at load time, never at Update time (range errors carry a
// "precondition violation:" message prefix but are not czscerr.Precondition
// values).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the ranges spec.md's options assume hold: min_bi_k is the
// minimum non-overlap separation (C4 requires at least 3 merged bars to even
// express a fractal), max_raw_len must be able to hold the merge seed plus a
// few retrograde windows.
func (c *Config) Validate() error {
	if c.MinBiK < 3 {
		return fmt.Errorf("precondition violation: min_bi_k must be >= 3, got %d", c.MinBiK)
	}
	if c.MaxRawLen < 100 {
		return fmt.Errorf("precondition violation: max_raw_len must be >= 100, got %d", c.MaxRawLen)
	}
	if c.MACD.Fast <= 0 || c.MACD.Slow <= 0 || c.MACD.Signal <= 0 {
		return fmt.Errorf("precondition violation: macd periods must be positive, got %+v", c.MACD)
	}
	if c.MACD.Fast >= c.MACD.Slow {
		return fmt.Errorf("precondition violation: macd.fast (%d) must be < macd.slow (%d)", c.MACD.Fast, c.MACD.Slow)
	}
	if c.Boll.Period <= 0 {
		return fmt.Errorf("precondition violation: boll.period must be positive, got %d", c.Boll.Period)
	}
	if c.Boll.K <= 0 {
		return fmt.Errorf("precondition violation: boll.k must be positive, got %f", c.Boll.K)
	}
	for _, p := range c.MAParams {
		if p <= 0 {
			return fmt.Errorf("precondition violation: ma_params entries must be positive, got %d", p)
		}
	}
	if c.Snapshot.CacheTTLSecs < 0 {
		return fmt.Errorf("precondition violation: snapshot.cache_ttl_secs must be >= 0, got %d", c.Snapshot.CacheTTLSecs)
	}
	return nil
}
