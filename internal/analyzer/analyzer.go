// Package analyzer defines the capability a sweep run invokes to produce
// per-run analysis artifacts, and ships the built-in analyzers.
//
// Analyzers are registered explicitly: Default returns the fixed list a run
// invokes, in order. Each analyzer writes only beneath the directory it is
// handed and draws randomness only from the seed it is given.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nvandessel/echonull/internal/logging"
)

// Analyzer produces one run's partial results. input is reserved for
// caller-provided data and is nil for sweep runs.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, runID int, seed int64, input any, outDir string) (Section, error)
}

// Entry is one key/value pair of a Section.
type Entry struct {
	Key   string
	Value any
}

// Section is a string-keyed mapping that keeps insertion order and
// marshals to a JSON object in that order. A nil Section marshals as {}.
type Section []Entry

// Set replaces the value for key in place, or appends it.
func (s Section) Set(key string, value any) Section {
	for i := range s {
		if s[i].Key == key {
			s[i].Value = value
			return s
		}
	}
	return append(s, Entry{Key: key, Value: value})
}

// Get returns the value stored for key.
func (s Section) Get(key string) (any, bool) {
	for _, e := range s {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in insertion order.
func (s Section) Keys() []string {
	keys := make([]string, len(s))
	for i, e := range s {
		keys[i] = e.Key
	}
	return keys
}

// MarshalJSON encodes the section as an object with keys in insertion order.
func (s Section) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", e.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Default returns the built-in analyzers in invocation order.
func Default(thresholds []float64) []Analyzer {
	return []Analyzer{
		NewGraphAnalysis(thresholds),
		DeltaStats{},
		MarkCounts{},
	}
}

// WithTiming wraps each analyzer so every Analyze call is timed at trace level.
func WithTiming(analyzers []Analyzer, logger *slog.Logger) []Analyzer {
	wrapped := make([]Analyzer, len(analyzers))
	for i, a := range analyzers {
		wrapped[i] = timed{inner: a, logger: logger}
	}
	return wrapped
}

type timed struct {
	inner  Analyzer
	logger *slog.Logger
}

func (t timed) Name() string { return t.inner.Name() }

func (t timed) Analyze(ctx context.Context, runID int, seed int64, input any, outDir string) (Section, error) {
	defer logging.Track(t.logger, logging.LevelTrace, t.inner.Name(), "run_id", runID)()
	return t.inner.Analyze(ctx, runID, seed, input, outDir)
}

// writeJSON writes v as compact JSON to path, creating parent directories.
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
