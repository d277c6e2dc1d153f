// Package config loads the pool/runtime settings for the bundled
// tailwindportd devtool from YAML, with TAILWINDPORT_* environment
// overrides — grounded almost verbatim on the teacher's
// internal/config.Config (the dual YAML/JSON Duration type in particular).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for cmd/tailwindportd.
type Config struct {
	MaxPoolSize      int      `yaml:"max_pool_size"`
	IdleTimeout      Duration `yaml:"idle_timeout"`
	CacheTTL         Duration `yaml:"cache_ttl"`
	StartupTimeout   Duration `yaml:"startup_timeout"`
	PortReadyTimeout Duration `yaml:"port_ready_timeout"`
	CompileTimeout   Duration `yaml:"compile_timeout"`
	ScratchRoot      string   `yaml:"scratch_root"`
	DBPath           string   `yaml:"db_path"` // empty disables persistence
	ListenAddr       string   `yaml:"listen_addr"`
	TrustedCIDRs     string   `yaml:"trusted_cidrs"`
	BinaryPath       string   `yaml:"binary_path"`
	TailwindVersion  int      `yaml:"tailwind_version"` // 3 or 4
	MaxRetryAttempts int      `yaml:"max_retry_attempts"`
	RetryBaseDelay   Duration `yaml:"retry_base_delay"`
	RetryFactor      float64  `yaml:"retry_factor"`
}

// Duration is a yaml/json-unmarshallable time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Duration.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Load reads and parses the YAML config at path, then applies any
// TAILWINDPORT_* environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnv(&cfg)
	return &cfg, nil
}

// applyEnv overrides config fields with values from TAILWINDPORT_* env
// vars, mirroring the teacher's REFINERY_* convention.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TAILWINDPORT_LISTEN"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TAILWINDPORT_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TAILWINDPORT_TRUSTED_CIDRS"); v != "" {
		cfg.TrustedCIDRs = v
	}
	if v := os.Getenv("TAILWINDPORT_BINARY"); v != "" {
		cfg.BinaryPath = v
	}
	if v := os.Getenv("TAILWINDPORT_SCRATCH_ROOT"); v != "" {
		cfg.ScratchRoot = v
	}
}

// Validate applies spec.md's normative defaults and rejects inconsistent
// settings.
func Validate(cfg *Config) error {
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 4
	}
	if cfg.IdleTimeout.Duration == 0 {
		cfg.IdleTimeout.Duration = 10 * time.Minute
	}
	if cfg.CacheTTL.Duration == 0 {
		cfg.CacheTTL.Duration = 30 * time.Minute
	}
	if cfg.StartupTimeout.Duration == 0 {
		cfg.StartupTimeout.Duration = 10 * time.Second
	}
	if cfg.PortReadyTimeout.Duration == 0 {
		cfg.PortReadyTimeout.Duration = time.Second
	}
	if cfg.CompileTimeout.Duration == 0 {
		cfg.CompileTimeout.Duration = 5 * time.Second
	}
	if cfg.ScratchRoot == "" {
		cfg.ScratchRoot = filepath.Join(os.TempDir(), fmt.Sprintf("tailwindport-%d", os.Getpid()))
	}
	if !filepath.IsAbs(cfg.ScratchRoot) {
		return fmt.Errorf("config: scratch_root must be absolute, got %q", cfg.ScratchRoot)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.TailwindVersion == 0 {
		cfg.TailwindVersion = 4
	}
	if cfg.TailwindVersion != 3 && cfg.TailwindVersion != 4 {
		return fmt.Errorf("config: tailwind_version must be 3 or 4, got %d", cfg.TailwindVersion)
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = 3
	}
	if cfg.RetryBaseDelay.Duration == 0 {
		cfg.RetryBaseDelay.Duration = 100 * time.Millisecond
	}
	if cfg.RetryFactor == 0 {
		cfg.RetryFactor = 2
	}
	if cfg.BinaryPath == "" {
		return fmt.Errorf("config: binary_path is required")
	}
	return nil
}
