// Package archive packages a sweep output tree into a single compressed file
// placed next to it. Archives are reproducible: entries are written in
// lexical path order with a fixed timestamp and normalized modes, so the same
// tree always yields the same archive bytes.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// Format selects the archive container.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
)

// ErrUnknownFormat is returned for an unsupported archive format name.
var ErrUnknownFormat = errors.New("unknown archive format")

// Epoch is the modification time stamped on every entry.
var Epoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseFormat maps a format name to a Format. "" selects zip.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatZip:
		return FormatZip, nil
	case FormatTarGz, "tgz":
		return FormatTarGz, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: zip, tar.gz)", ErrUnknownFormat, s)
	}
}

// PathFor returns where the archive of dir is written: the directory path
// with the format's extension appended, e.g. _out -> _out.zip.
func PathFor(dir string, format Format) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	if filepath.Dir(abs) == abs {
		return "", fmt.Errorf("cannot archive filesystem root %s", abs)
	}
	if format == "" {
		format = FormatZip
	}
	return abs + "." + string(format), nil
}

// Write archives every regular file under dir and returns the archive path.
// Entry names are slash-separated paths relative to dir. The archive is
// written to a temporary file and renamed into place, so a failed write never
// leaves a truncated archive behind.
func Write(ctx context.Context, dir string, format Format) (string, error) {
	dest, err := PathFor(dir, format)
	if err != nil {
		return "", err
	}

	files, err := collect(dir)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	switch format {
	case FormatTarGz:
		err = writeTarGz(ctx, tmp, dir, files)
	case FormatZip, "":
		err = writeZip(ctx, tmp, dir, files)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp archive: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return "", fmt.Errorf("setting archive mode: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("moving archive into place: %w", err)
	}
	return dest, nil
}

// collect returns the slash-separated relative paths of all regular files
// under dir, sorted.
func collect(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func writeZip(ctx context.Context, w io.Writer, dir string, files []string) error {
	zw := zip.NewWriter(w)
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: Epoch,
		}
		hdr.SetMode(0644)
		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("adding %s: %w", name, err)
		}
		if err := copyFile(entry, filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			return fmt.Errorf("adding %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing zip: %w", err)
	}
	return nil
}

func writeTarGz(ctx context.Context, w io.Writer, dir string, files []string) error {
	gzw, err := gzip.NewWriterLevel(w, gzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	tw := tar.NewWriter(gzw)

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, filepath.FromSlash(name))
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", name, err)
		}
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     0644,
			Size:     info.Size(),
			ModTime:  Epoch,
			Format:   tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("adding %s: %w", name, err)
		}
		if err := copyFile(tw, path); err != nil {
			return fmt.Errorf("adding %s: %w", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finishing tar: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}
	return nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
