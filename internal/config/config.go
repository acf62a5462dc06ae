// Package config provides unified configuration loading for echonull.
// It supports loading from YAML files and environment variables; CLI flags
// are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/nvandessel/echonull/internal/archive"
	"github.com/nvandessel/echonull/internal/dataset"
	"github.com/nvandessel/echonull/internal/sweep"
	"gopkg.in/yaml.v3"
)

// ErrInvalidThreshold is returned when a threshold token is not a number.
var ErrInvalidThreshold = errors.New("invalid threshold")

// Defaults for a sweep invocation.
const (
	DefaultRuns       = 10
	DefaultThresholds = "0.25,0.5,0.7,0.8"
	DefaultOut        = "_out"
	DefaultSeedBase   = 1000
)

// Config contains all echonull configuration settings.
type Config struct {
	// Sweep holds the parameters shared by every run of a sweep.
	Sweep SweepConfig `json:"sweep" yaml:"sweep"`

	// Dataset controls the generated per-run dataset.
	Dataset DatasetConfig `json:"dataset" yaml:"dataset"`

	// Archive controls packaging of the output tree.
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// History controls the sqlite sweep ledger.
	History HistoryConfig `json:"history" yaml:"history"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SweepConfig holds the core sweep parameters.
type SweepConfig struct {
	Runs int `json:"runs" yaml:"runs"`

	// Thresholds is a comma-separated list of floats. Empty is valid.
	Thresholds string `json:"thresholds" yaml:"thresholds"`

	Out      string `json:"out" yaml:"out"`
	SeedBase int64  `json:"seed_base" yaml:"seed_base"`

	// Workers bounds concurrent runs. 0 means one per CPU.
	Workers int `json:"workers" yaml:"workers"`
}

// DatasetConfig configures dataset generation.
type DatasetConfig struct {
	Rows int `json:"rows" yaml:"rows"`
	Cols int `json:"cols" yaml:"cols"`

	// Arrow also writes each dataset as an Arrow IPC file.
	Arrow bool `json:"arrow" yaml:"arrow"`
}

// ArchiveConfig configures the archiver.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Format  string `json:"format" yaml:"format"`
}

// HistoryConfig configures the sweep ledger.
type HistoryConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path of the sqlite database. Empty means <state dir>/history.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures echonull's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to <state dir>/events.jsonl.
	// "trace" additionally times every analyzer call.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Sweep: SweepConfig{
			Runs:       DefaultRuns,
			Thresholds: DefaultThresholds,
			Out:        DefaultOut,
			SeedBase:   DefaultSeedBase,
			Workers:    0,
		},
		Dataset: DatasetConfig{
			Rows: dataset.DefaultRows,
			Cols: dataset.DefaultCols,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Format:  string(archive.FormatZip),
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// StateDir returns the per-user state directory (~/.echonull/).
func StateDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".echonull"), nil
}

// Load loads configuration from path, or from ~/.echonull/config.yaml when
// path is empty, then applies environment variable overrides.
// Order: defaults -> config file -> environment variables
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if stateDir, err := StateDir(); err == nil {
			candidate := filepath.Join(stateDir, "config.yaml")
			if _, statErr := os.Stat(candidate); statErr == nil {
				path = candidate
			}
		}
	}

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Sweep.Out = os.ExpandEnv(config.Sweep.Out)
	config.History.Path = os.ExpandEnv(config.History.Path)

	return config, nil
}

// ParseThresholds splits s on commas, trims each token, drops empty tokens
// and parses the rest as floats. "" yields an empty, non-nil list.
func ParseThresholds(s string) ([]float64, error) {
	out := []float64{}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidThreshold, tok)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %q is not finite", ErrInvalidThreshold, tok)
		}
		out = append(out, v)
	}
	return out, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Sweep.Runs < 0 {
		return fmt.Errorf("runs must be non-negative, got %d", c.Sweep.Runs)
	}
	if strings.TrimSpace(c.Sweep.Out) == "" {
		return fmt.Errorf("out must not be empty")
	}
	if _, err := ParseThresholds(c.Sweep.Thresholds); err != nil {
		return err
	}
	if c.Dataset.Rows < 0 || c.Dataset.Cols < 0 {
		return fmt.Errorf("dataset dimensions must be non-negative, got %dx%d", c.Dataset.Rows, c.Dataset.Cols)
	}
	if _, err := archive.ParseFormat(c.Archive.Format); err != nil {
		return err
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Params validates the configuration and converts it into sweep parameters.
// Workers of 0 resolves to runtime.NumCPU(); a negative count is clamped to 1.
func (c *Config) Params() (sweep.Params, error) {
	if err := c.Validate(); err != nil {
		return sweep.Params{}, err
	}

	thresholds, err := ParseThresholds(c.Sweep.Thresholds)
	if err != nil {
		return sweep.Params{}, err
	}
	format, err := archive.ParseFormat(c.Archive.Format)
	if err != nil {
		return sweep.Params{}, err
	}

	workers := c.Sweep.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	return sweep.Params{
		Runs:          c.Sweep.Runs,
		Thresholds:    thresholds,
		Out:           c.Sweep.Out,
		SeedBase:      c.Sweep.SeedBase,
		Workers:       max(1, workers),
		Archive:       c.Archive.Enabled,
		ArchiveFormat: format,
		Rows:          c.Dataset.Rows,
		Cols:          c.Dataset.Cols,
		ArrowExport:   c.Dataset.Arrow,
	}, nil
}

// HistoryPath returns the configured ledger path, defaulting into the state dir.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	stateDir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(stateDir, "history.db"), nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unparseable numeric values are ignored.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("ECHONULL_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Sweep.Runs = n
		}
	}

	if v, ok := os.LookupEnv("ECHONULL_THRESHOLDS"); ok {
		config.Sweep.Thresholds = v
	}

	if v := os.Getenv("ECHONULL_OUT"); v != "" {
		config.Sweep.Out = v
	}

	if v := os.Getenv("ECHONULL_SEED_BASE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Sweep.SeedBase = n
		}
	}

	if v := os.Getenv("ECHONULL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Sweep.Workers = n
		}
	}

	if v := os.Getenv("ECHONULL_ZIP"); v != "" {
		config.Archive.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("ECHONULL_ARCHIVE_FORMAT"); v != "" {
		config.Archive.Format = v
	}

	if v := os.Getenv("ECHONULL_ARROW"); v != "" {
		config.Dataset.Arrow = v == "true" || v == "1"
	}

	if v := os.Getenv("ECHONULL_HISTORY"); v != "" {
		config.History.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("ECHONULL_HISTORY_PATH"); v != "" {
		config.History.Path = v
	}

	if v := os.Getenv("ECHONULL_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
