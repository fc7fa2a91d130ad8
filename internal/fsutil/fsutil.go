// SPDX-License-Identifier: MPL-2.0

// Package fsutil provides the file system primitives shared by the pipeline
// stages: glob-filtered tree walks, byte-for-byte copies and emptiness checks.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern is returned for a malformed doublestar glob.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// ValidatePattern checks that pattern is a valid doublestar glob.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	return nil
}

// Match reports whether rel (relative to a walk root) matches pattern.
// Separators are normalized to forward slashes before matching.
func Match(pattern, rel string) bool {
	matched, err := doublestar.Match(pattern, filepath.ToSlash(rel))
	return err == nil && matched
}

// FindFiles walks root and returns the paths of all regular files whose path
// relative to root matches pattern, in lexical walk order. Directories are
// never returned. Any walk error aborts the search.
func FindFiles(root, pattern string) ([]string, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if Match(pattern, rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// CopyFile copies src to dst, creating or truncating dst and keeping the
// permission bits of src. The parent of dst must exist.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// DirState reports whether path exists as a directory and, if so, whether
// it has any entries at all (files or subdirectories).
func DirState(path string) (exists, empty bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, true, nil
	}
	if err != nil {
		return false, false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, false, err
	}
	if !info.IsDir() {
		return true, false, fmt.Errorf("%s: not a directory", path)
	}

	names, err := f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, true, nil
	}
	if err != nil {
		return true, false, err
	}
	return true, len(names) == 0, nil
}

// ClearDir removes every entry inside dir, creating dir if it is absent.
// The directory itself is kept.
func ClearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
