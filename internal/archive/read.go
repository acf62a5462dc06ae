package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// MaxEntrySize bounds how much of a single entry ReadEntry will decompress (200MB).
const MaxEntrySize = 200 * 1024 * 1024

// DetectFormat infers the format from the archive path's extension.
func DetectFormat(path string) (Format, error) {
	switch {
	case strings.HasSuffix(path, "."+string(FormatTarGz)), strings.HasSuffix(path, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(path, "."+string(FormatZip)):
		return FormatZip, nil
	default:
		return "", fmt.Errorf("%w: cannot infer from %s", ErrUnknownFormat, path)
	}
}

// List returns the entry names of an archive in stored order.
func List(path string) ([]string, error) {
	var names []string
	err := walk(path, func(name string, _ io.Reader) (bool, error) {
		names = append(names, name)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ReadEntry returns the contents of one entry. A missing entry yields an
// error wrapping fs.ErrNotExist.
func ReadEntry(path, name string) ([]byte, error) {
	var data []byte
	found := false
	err := walk(path, func(entry string, r io.Reader) (bool, error) {
		if entry != name {
			return false, nil
		}
		found = true
		b, err := io.ReadAll(io.LimitReader(r, MaxEntrySize+1))
		if err != nil {
			return true, fmt.Errorf("reading %s: %w", name, err)
		}
		if len(b) > MaxEntrySize {
			return true, fmt.Errorf("entry %s exceeds maximum size of %d bytes", name, MaxEntrySize)
		}
		data = b
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("entry %s: %w", name, fs.ErrNotExist)
	}
	return data, nil
}

// walk visits each entry until fn reports stop or fails.
func walk(path string, fn func(name string, r io.Reader) (stop bool, err error)) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}

	if format == FormatZip {
		zr, err := zip.OpenReader(path)
		if err != nil {
			return fmt.Errorf("opening zip: %w", err)
		}
		defer zr.Close()

		for _, f := range zr.File {
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("opening %s: %w", f.Name, err)
			}
			stop, err := fn(f.Name, rc)
			rc.Close()
			if err != nil || stop {
				return err
			}
		}
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		stop, err := fn(hdr.Name, tr)
		if err != nil || stop {
			return err
		}
	}
}
