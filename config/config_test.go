package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Hash.Policy != PolicyContent {
		t.Errorf("default policy = %q, want %q", cfg.Hash.Policy, PolicyContent)
	}
	if cfg.Simulated.Seed != 42 || cfg.Simulated.Size != 256 {
		t.Errorf("unexpected simulated defaults: %+v", cfg.Simulated)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clothdna.toml")
	content := `
[database]
path = "/tmp/items.db"

[hash]
algorithm = "BLAKE3"
policy = "audit"

[scan]
workers = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/items.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Hash.Algorithm != AlgorithmBLAKE3 || cfg.Hash.Policy != PolicyAudit {
		t.Errorf("hash = %+v", cfg.Hash)
	}
	if cfg.Scan.Workers != 3 {
		t.Errorf("workers = %d", cfg.Scan.Workers)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level default lost: %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	content := `
[hash]
algorithm = "md5"
policy = "sometimes"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"hash.algorithm", "hash.policy"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hash.Algorithm != AlgorithmSHA256 {
		t.Errorf("algorithm = %q", cfg.Hash.Algorithm)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Scan.Workers = 5
	data, err := cfg.Encode()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "rt.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded != cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}
