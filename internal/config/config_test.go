package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture config: %v", err)
	}
	return path
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
max_pool_size: 8
idle_timeout: 5m
binary_path: /usr/bin/tailwindcss
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxPoolSize != 8 {
		t.Errorf("MaxPoolSize = %d, want 8", cfg.MaxPoolSize)
	}
	if cfg.IdleTimeout.Duration != 5*time.Minute {
		t.Errorf("IdleTimeout = %v, want 5m", cfg.IdleTimeout.Duration)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
binary_path: /usr/bin/tailwindcss
listen_addr: ":9000"
`)
	t.Setenv("TAILWINDPORT_LISTEN", ":7777")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7777" {
		t.Errorf("ListenAddr = %q, want env override :7777", cfg.ListenAddr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	cfg := &Config{BinaryPath: "/usr/bin/tailwindcss"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.MaxPoolSize != 4 {
		t.Errorf("MaxPoolSize default = %d, want 4", cfg.MaxPoolSize)
	}
	if cfg.IdleTimeout.Duration != 10*time.Minute {
		t.Errorf("IdleTimeout default = %v, want 10m", cfg.IdleTimeout.Duration)
	}
	if cfg.TailwindVersion != 4 {
		t.Errorf("TailwindVersion default = %d, want 4", cfg.TailwindVersion)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr default = %q, want :8080", cfg.ListenAddr)
	}
	if !filepath.IsAbs(cfg.ScratchRoot) {
		t.Errorf("ScratchRoot default %q should be absolute", cfg.ScratchRoot)
	}
	if cfg.MaxRetryAttempts != 3 || cfg.RetryFactor != 2 {
		t.Errorf("retry defaults = %d/%v, want 3/2", cfg.MaxRetryAttempts, cfg.RetryFactor)
	}
}

func TestValidateRequiresBinaryPath(t *testing.T) {
	cfg := &Config{}
	if err := Validate(cfg); err == nil {
		t.Error("Validate should require binary_path")
	}
}

func TestValidateRejectsBadTailwindVersion(t *testing.T) {
	cfg := &Config{BinaryPath: "/usr/bin/tailwindcss", TailwindVersion: 5}
	if err := Validate(cfg); err == nil {
		t.Error("Validate should reject an unsupported tailwind_version")
	}
}

func TestValidateRejectsRelativeScratchRoot(t *testing.T) {
	cfg := &Config{BinaryPath: "/usr/bin/tailwindcss", ScratchRoot: "relative/scratch"}
	if err := Validate(cfg); err == nil {
		t.Error("Validate should reject a relative scratch_root")
	}
}

func TestDurationUnmarshalJSON(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte(`"1s500ms"`)); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if d.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", d.Duration)
	}
}
