package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"clothdna/authenticity"
	"clothdna/utils"
)

// Hash policies.
const (
	PolicyContent = string(authenticity.PolicyContent)
	PolicyAudit   = string(authenticity.PolicyAudit)
)

// Digest algorithms.
const (
	AlgorithmSHA256 = string(authenticity.SHA256)
	AlgorithmBLAKE3 = string(authenticity.BLAKE3)
)

// Database configures the sqlite item registry.
type Database struct {
	Path string `toml:"path"`
}

// Storage configures the JSON document output directory.
type Storage struct {
	OutputDir string `toml:"output_dir"`
	Enabled   bool   `toml:"enabled"`
}

// Hash configures how DNA records are hashed.
type Hash struct {
	Algorithm string `toml:"algorithm"`
	Policy    string `toml:"policy"`
}

// Logging configures the package logger.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Scan configures batch folder registration.
type Scan struct {
	Workers int  `toml:"workers"`
	Force   bool `toml:"force"`
}

// Simulated configures the fixed-seed simulated feature source.
type Simulated struct {
	Enabled bool  `toml:"enabled"`
	Seed    int64 `toml:"seed"`
	Size    int   `toml:"size"`
}

// Config is the complete runtime configuration.
type Config struct {
	Database  Database  `toml:"database"`
	Storage   Storage   `toml:"storage"`
	Hash      Hash      `toml:"hash"`
	Logging   Logging   `toml:"logging"`
	Scan      Scan      `toml:"scan"`
	Simulated Simulated `toml:"simulated"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: Database{Path: utils.DefaultDatabasePath()},
		Storage:  Storage{OutputDir: utils.DefaultOutputDir(), Enabled: true},
		Hash:     Hash{Algorithm: AlgorithmSHA256, Policy: PolicyContent},
		Logging:  Logging{Level: "info", Format: "text"},
		Scan:     Scan{Workers: 0},
		Simulated: Simulated{
			Enabled: false,
			Seed:    42,
			Size:    256,
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Hash.Algorithm = strings.ToLower(strings.TrimSpace(c.Hash.Algorithm))
	c.Hash.Policy = strings.ToLower(strings.TrimSpace(c.Hash.Policy))
	if c.Hash.Algorithm == "" {
		c.Hash.Algorithm = AlgorithmSHA256
	}
	if c.Hash.Policy == "" {
		c.Hash.Policy = PolicyContent
	}
}

// Validate checks option values.
func (c Config) Validate() error {
	var errs []error
	switch c.Hash.Algorithm {
	case AlgorithmSHA256, AlgorithmBLAKE3:
	default:
		errs = append(errs, fmt.Errorf("hash.algorithm: unsupported value %q", c.Hash.Algorithm))
	}
	switch c.Hash.Policy {
	case PolicyContent, PolicyAudit:
	default:
		errs = append(errs, fmt.Errorf("hash.policy: unsupported value %q", c.Hash.Policy))
	}
	if c.Scan.Workers < 0 {
		errs = append(errs, fmt.Errorf("scan.workers: must be >= 0, got %d", c.Scan.Workers))
	}
	if c.Simulated.Enabled && c.Simulated.Size <= 0 {
		errs = append(errs, fmt.Errorf("simulated.size: must be > 0, got %d", c.Simulated.Size))
	}
	return errors.Join(errs...)
}

// Encode renders the configuration as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
