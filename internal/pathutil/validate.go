// Package pathutil confines caller-supplied paths to a set of root directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path resolves outside every allowed root.
var ErrOutsideRoot = errors.New("path is outside allowed directories")

// Redact shortens a path to .../<parent>/<base> for error messages.
func Redact(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// Confine resolves path, relative paths against the first root, and returns
// its absolute form if it lies within one of roots. Symlinks in the existing
// part of the path are followed before the check, so a link inside a root
// that points elsewhere is rejected. The path itself need not exist.
func Confine(path string, roots ...string) (string, error) {
	switch {
	case path == "":
		return "", fmt.Errorf("path is empty")
	case len(roots) == 0:
		return "", fmt.Errorf("no allowed directories configured")
	case strings.ContainsRune(path, 0):
		return "", fmt.Errorf("path contains null byte")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(roots[0], path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", Redact(path), err)
	}
	resolved, err := resolve(abs)
	if err != nil {
		return "", err
	}

	for _, root := range roots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rootResolved, err := resolve(rootAbs)
		if err != nil {
			continue
		}
		if within(resolved, rootResolved) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideRoot, Redact(abs))
}

// Resolve returns the absolute form of path with symlinks in its existing
// part evaluated. The path itself need not exist.
func Resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", Redact(path), err)
	}
	return resolve(abs)
}

// resolve evaluates symlinks on the deepest existing ancestor of p and
// re-appends the missing tail.
func resolve(p string) (string, error) {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r, nil
	}
	parent := filepath.Dir(p)
	if parent == p {
		return "", fmt.Errorf("cannot resolve %s", Redact(p))
	}
	r, err := resolve(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(r, filepath.Base(p)), nil
}

func within(p, root string) bool {
	return p == root || strings.HasPrefix(p, root+string(os.PathSeparator))
}
