// Package config loads engine configuration from a YAML file with environment
// overrides.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the engine's static configuration. Everything here is wired
// explicitly into component constructors; the engine keeps no process-wide
// mutable state.
type Config struct {
	// Endpoint is the chain RPC gateway URL.
	Endpoint string `yaml:"endpoint" env:"SUBSTAKE_ENDPOINT"`
	// Coldkey is the SS58 address of the staking account.
	Coldkey string `yaml:"coldkey" env:"SUBSTAKE_COLDKEY"`
	// BlockTime is the configured block production interval used for
	// rate-limit waits; it is never discovered from the chain.
	BlockTime time.Duration `yaml:"block_time" env:"SUBSTAKE_BLOCK_TIME"`
	// JournalDir is where execution results are journaled. Empty disables
	// the journal.
	JournalDir string `yaml:"journal_dir" env:"SUBSTAKE_JOURNAL_DIR"`

	// SafeStaking enables price-limited submission by default.
	SafeStaking bool `yaml:"safe_staking" env:"SUBSTAKE_SAFE_STAKING"`
	// RateTolerance is the default price tolerance fraction, in [0, 1).
	RateTolerance float64 `yaml:"rate_tolerance" env:"SUBSTAKE_RATE_TOLERANCE"`
	// AllowPartial accepts partially filled safe operations.
	AllowPartial bool `yaml:"allow_partial" env:"SUBSTAKE_ALLOW_PARTIAL"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		BlockTime:     12 * time.Second,
		JournalDir:    "./wal/journal",
		RateTolerance: 0.05,
	}
}

// Load reads the YAML file at path (when non-empty), then applies environment
// overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "parse config file")
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config env")
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.Coldkey == "" {
		return errors.New("coldkey is required")
	}
	if c.BlockTime <= 0 {
		return errors.New("block_time must be positive")
	}
	if c.RateTolerance < 0 || c.RateTolerance >= 1 {
		return errors.New("rate_tolerance must be in [0, 1)")
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return errors.Wrap(os.WriteFile(path, raw, 0o600), "write config file")
}
