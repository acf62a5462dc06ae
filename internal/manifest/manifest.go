// Package manifest writes the sweep overview and the integrity manifest that
// pins it, and verifies the pair afterwards.
//
// The manifest records the SHA-256 of the overview bytes exactly as written
// to disk. Verify recomputes that digest from the file currently on disk, so
// any edit to the overview after the sweep is detected.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/echonull/internal/hashing"
)

// File names under the output root.
const (
	OverviewFile = "overview.json"
	ManifestFile = "manifest.json"
)

// Name labels every manifest this tool writes.
const Name = "EchoNull"

// ErrIntegrity is returned when the overview on disk no longer matches the manifest.
var ErrIntegrity = errors.New("overview digest does not match manifest")

// Manifest is the integrity record for one sweep.
type Manifest struct {
	Name           string    `json:"name"`
	Runs           int       `json:"runs"`
	Thresholds     []float64 `json:"thresholds"`
	SeedBase       int64     `json:"seed_base"`
	OverviewSHA256 string    `json:"overview_sha256"`
}

// Meta carries the sweep-level parameters recorded in the manifest.
type Meta struct {
	Runs       int
	Thresholds []float64
	SeedBase   int64
}

// Write serializes overview to <out>/overview.json, hashes the written file,
// and writes <out>/manifest.json referencing that digest.
//
// overview must marshal deterministically: ordered slices and structs, no
// unsorted maps. Re-running Write with an unchanged overview produces
// byte-identical files.
func Write(out string, overview any, meta Meta) (*Manifest, error) {
	if overview == nil {
		return nil, fmt.Errorf("overview is nil")
	}

	doc, err := json.Marshal(overview)
	if err != nil {
		return nil, fmt.Errorf("encoding overview: %w", err)
	}

	overviewPath := filepath.Join(out, OverviewFile)
	if err := writeAtomic(overviewPath, doc); err != nil {
		return nil, fmt.Errorf("writing overview: %w", err)
	}

	digest, err := hashing.File(overviewPath)
	if err != nil {
		return nil, fmt.Errorf("hashing overview: %w", err)
	}

	thresholds := meta.Thresholds
	if thresholds == nil {
		thresholds = []float64{}
	}
	m := &Manifest{
		Name:           Name,
		Runs:           meta.Runs,
		Thresholds:     thresholds,
		SeedBase:       meta.SeedBase,
		OverviewSHA256: digest,
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := writeAtomic(filepath.Join(out, ManifestFile), data); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	return m, nil
}

// Read loads <out>/manifest.json.
func Read(out string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(out, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// Verify checks that the overview on disk hashes to the digest recorded in
// the manifest. A mismatch returns an error wrapping ErrIntegrity.
func Verify(out string) (*Manifest, error) {
	m, err := Read(out)
	if err != nil {
		return nil, err
	}

	actual, err := hashing.File(filepath.Join(out, OverviewFile))
	if err != nil {
		return m, fmt.Errorf("hashing overview: %w", err)
	}
	if actual != m.OverviewSHA256 {
		return m, fmt.Errorf("%w: manifest has %s, overview hashes to %s", ErrIntegrity, m.OverviewSHA256, actual)
	}
	return m, nil
}

// writeAtomic writes data to a temp file beside path and renames it over
// path, so readers never observe a partially written document.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
