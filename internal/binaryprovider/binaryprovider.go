// Package binaryprovider is a reference BinaryProvider: it validates a
// pre-downloaded path is absolute, present, and executable. Acquisition
// (download, signature check) stays a genuine external concern per
// spec.md §1's non-goals — this only satisfies the interface boundary so
// the bundled devtool has a default to wire.
//
// Grounded on the teacher's converter/handler.go permission-probing idiom
// (os.Chmod retried on EPERM/EACCES), adapted to a read-only check.
package binaryprovider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Static resolves to a fixed, pre-validated path.
type Static struct {
	Path string
}

// NewStatic validates path eagerly and returns a Static provider.
func NewStatic(path string) (*Static, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}
	return &Static{Path: path}, nil
}

// Resolve implements the BinaryProvider contract spec.md §1 describes.
func (s *Static) Resolve(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.Path, nil
}

// Validate checks that path is absolute, exists, is a regular file, and
// has at least one executable bit set.
func Validate(path string) error {
	if path == "" {
		return fmt.Errorf("binaryprovider: path is required")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("binaryprovider: path must be absolute, got %q", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("binaryprovider: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("binaryprovider: %s is a directory, not a binary", path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("binaryprovider: %s is not executable", path)
	}
	return nil
}
