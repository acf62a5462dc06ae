package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nvandessel/echonull/internal/archive"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Sweep.Runs != 10 {
		t.Errorf("expected Runs 10, got %d", config.Sweep.Runs)
	}
	if config.Sweep.Thresholds != "0.25,0.5,0.7,0.8" {
		t.Errorf("expected default thresholds, got %q", config.Sweep.Thresholds)
	}
	if config.Sweep.Out != "_out" {
		t.Errorf("expected Out '_out', got %q", config.Sweep.Out)
	}
	if config.Sweep.SeedBase != 1000 {
		t.Errorf("expected SeedBase 1000, got %d", config.Sweep.SeedBase)
	}
	if config.Archive.Enabled {
		t.Error("expected archive to be off by default")
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got %q", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []float64
		wantErr bool
	}{
		{"default list", "0.25,0.5,0.7,0.8", []float64{0.25, 0.5, 0.7, 0.8}, false},
		{"spaces trimmed", "0.25, 0.5", []float64{0.25, 0.5}, false},
		{"empty string", "", []float64{}, false},
		{"empty tokens dropped", ",0.5,,", []float64{0.5}, false},
		{"order kept", "0.8,0.25", []float64{0.8, 0.25}, false},
		{"non-numeric", "abc", nil, true},
		{"one bad token", "0.25,x", nil, true},
		{"nan rejected", "NaN", nil, true},
		{"inf rejected", "0.5,Inf", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseThresholds(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidThreshold) {
					t.Fatalf("ParseThresholds(%q) error = %v, want ErrInvalidThreshold", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseThresholds(%q) error = %v", tt.input, err)
			}
			if got == nil {
				t.Fatalf("ParseThresholds(%q) returned nil slice", tt.input)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseThresholds(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
sweep:
  runs: 3
  thresholds: "0.25,0.5"
  out: /tmp/sweeps
  seed_base: 123
  workers: 2
dataset:
  rows: 64
  arrow: true
archive:
  enabled: true
  format: tar.gz
history:
  enabled: false
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Sweep.Runs != 3 {
		t.Errorf("expected Runs 3, got %d", config.Sweep.Runs)
	}
	if config.Sweep.SeedBase != 123 {
		t.Errorf("expected SeedBase 123, got %d", config.Sweep.SeedBase)
	}
	if config.Dataset.Rows != 64 {
		t.Errorf("expected Rows 64, got %d", config.Dataset.Rows)
	}
	// Unset keys keep their defaults.
	if config.Dataset.Cols != 8 {
		t.Errorf("expected Cols default 8, got %d", config.Dataset.Cols)
	}
	if !config.Dataset.Arrow {
		t.Error("expected Arrow to be true")
	}
	if config.Archive.Format != "tar.gz" {
		t.Errorf("expected tar.gz format, got %q", config.Archive.Format)
	}
	if config.History.Enabled {
		t.Error("expected History.Enabled false")
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %q", config.Logging.Level)
	}
}

func TestLoadFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("sweep: [unclosed"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() expected parse error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ECHONULL_RUNS", "4")
	t.Setenv("ECHONULL_THRESHOLDS", "")
	t.Setenv("ECHONULL_OUT", "elsewhere")
	t.Setenv("ECHONULL_SEED_BASE", "77")
	t.Setenv("ECHONULL_WORKERS", "not-a-number")
	t.Setenv("ECHONULL_ZIP", "1")
	t.Setenv("ECHONULL_LOG_LEVEL", "trace")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Sweep.Runs != 4 {
		t.Errorf("Runs = %d, want 4", config.Sweep.Runs)
	}
	if config.Sweep.Thresholds != "" {
		t.Errorf("Thresholds = %q, want empty override", config.Sweep.Thresholds)
	}
	if config.Sweep.Out != "elsewhere" {
		t.Errorf("Out = %q, want elsewhere", config.Sweep.Out)
	}
	if config.Sweep.SeedBase != 77 {
		t.Errorf("SeedBase = %d, want 77", config.Sweep.SeedBase)
	}
	if config.Sweep.Workers != 0 {
		t.Errorf("Workers = %d, want unparseable value ignored", config.Sweep.Workers)
	}
	if !config.Archive.Enabled {
		t.Error("expected ECHONULL_ZIP=1 to enable archive")
	}
	if config.Logging.Level != "trace" {
		t.Errorf("Level = %q, want trace", config.Logging.Level)
	}
}

func TestLoad_HomeConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".echonull")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("sweep:\n  runs: 2\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Sweep.Runs != 2 {
		t.Errorf("Runs = %d, want 2 from home config", config.Sweep.Runs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero runs", func(c *Config) { c.Sweep.Runs = 0 }, false},
		{"empty thresholds", func(c *Config) { c.Sweep.Thresholds = "" }, false},
		{"negative runs", func(c *Config) { c.Sweep.Runs = -1 }, true},
		{"negative workers", func(c *Config) { c.Sweep.Workers = -2 }, false},
		{"bad threshold", func(c *Config) { c.Sweep.Thresholds = "0.5,abc" }, true},
		{"empty out", func(c *Config) { c.Sweep.Out = "  " }, true},
		{"bad format", func(c *Config) { c.Archive.Format = "rar" }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParams(t *testing.T) {
	c := Default()
	c.Sweep.Thresholds = "0.25, 0.5"
	c.Archive.Enabled = true
	c.Archive.Format = "tar.gz"

	p, err := c.Params()
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}
	if diff := cmp.Diff([]float64{0.25, 0.5}, p.Thresholds); diff != "" {
		t.Errorf("Thresholds mismatch (-want +got):\n%s", diff)
	}
	if p.Workers != runtime.NumCPU() {
		t.Errorf("Workers = %d, want NumCPU %d", p.Workers, runtime.NumCPU())
	}
	if !p.Archive || p.ArchiveFormat != archive.FormatTarGz {
		t.Errorf("archive = %v/%q, want enabled tar.gz", p.Archive, p.ArchiveFormat)
	}

	c.Sweep.Thresholds = "zero"
	if _, err := c.Params(); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("Params() error = %v, want ErrInvalidThreshold", err)
	}
}

func TestParams_ClampsNegativeWorkers(t *testing.T) {
	t.Setenv("ECHONULL_WORKERS", "-3")
	c := Default()
	applyEnvOverrides(c)
	if c.Sweep.Workers != -3 {
		t.Fatalf("Sweep.Workers = %d, want -3 from env", c.Sweep.Workers)
	}

	p, err := c.Params()
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}
	if p.Workers != 1 {
		t.Errorf("Workers = %d, want clamped to 1", p.Workers)
	}
}

func TestHistoryPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c := Default()
	got, err := c.HistoryPath()
	if err != nil {
		t.Fatalf("HistoryPath() error = %v", err)
	}
	if want := filepath.Join(home, ".echonull", "history.db"); got != want {
		t.Errorf("HistoryPath() = %q, want %q", got, want)
	}

	c.History.Path = "/custom/ledger.db"
	if got, _ := c.HistoryPath(); got != "/custom/ledger.db" {
		t.Errorf("HistoryPath() = %q, want custom path", got)
	}
}
