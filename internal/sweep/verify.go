package sweep

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nvandessel/echonull/internal/archive"
	"github.com/nvandessel/echonull/internal/hashing"
	"github.com/nvandessel/echonull/internal/manifest"
)

// Verification is the outcome of Verify.
type Verification struct {
	Out      string             `json:"out"`
	Manifest *manifest.Manifest `json:"manifest"`
	Archives []ArchiveCheck     `json:"archives,omitempty"`
}

// ArchiveCheck reports one archive found beside the output root.
type ArchiveCheck struct {
	Path    string   `json:"path"`
	Format  string   `json:"format"`
	Entries int      `json:"entries"`
	Stale   []string `json:"stale,omitempty"`
}

// Verify checks the output bundle at out: the overview on disk must hash to
// the manifest's digest, and any archive next to out must carry the same
// overview.json and manifest.json bytes. Any mismatch wraps
// manifest.ErrIntegrity.
func Verify(out string) (*Verification, error) {
	m, err := manifest.Verify(out)
	if err != nil {
		return nil, err
	}
	v := &Verification{Out: out, Manifest: m}

	for _, format := range []archive.Format{archive.FormatZip, archive.FormatTarGz} {
		path, err := archive.PathFor(out, format)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		check, err := checkArchive(out, path, format)
		if err != nil {
			return nil, err
		}
		v.Archives = append(v.Archives, *check)
		if len(check.Stale) > 0 {
			return v, fmt.Errorf("%w: archive %s has stale %v", manifest.ErrIntegrity, path, check.Stale)
		}
	}
	return v, nil
}

func checkArchive(out, path string, format archive.Format) (*ArchiveCheck, error) {
	names, err := archive.List(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	check := &ArchiveCheck{Path: path, Format: string(format), Entries: len(names)}

	for _, name := range []string{manifest.OverviewFile, manifest.ManifestFile} {
		onDisk, err := hashing.File(filepath.Join(out, name))
		if err != nil {
			return nil, err
		}
		data, err := archive.ReadEntry(path, name)
		if errors.Is(err, fs.ErrNotExist) {
			check.Stale = append(check.Stale, name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s from archive: %w", name, err)
		}
		if hashing.Bytes(data) != onDisk {
			check.Stale = append(check.Stale, name)
		}
	}
	return check, nil
}
