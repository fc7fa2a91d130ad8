// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// MustMkdirAll creates a directory along with any necessary parents.
// The test fails immediately if the operation fails.
func MustMkdirAll(t testing.TB, path string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(path, perm); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}

// WriteFile writes content to path, creating parent directories as needed.
// The test fails immediately if the operation fails.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// WriteTree writes every file of files below root. Keys are slash-separated
// paths relative to root.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(rel)), content)
	}
}

// Backdate moves the modification time of root and every entry below it
// by age into the past.
func Backdate(t testing.TB, root string, age time.Duration) {
	t.Helper()
	past := time.Now().Add(-age)
	err := filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Chtimes(path, past, past)
	})
	if err != nil {
		t.Fatalf("failed to backdate %s: %v", root, err)
	}
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MustRemoveAll removes path and any children it contains.
// Unlike other Must* functions, this logs errors but doesn't fail the test,
// as cleanup failures are typically non-fatal.
func MustRemoveAll(t testing.TB, path string) {
	t.Helper()
	if err := os.RemoveAll(path); err != nil {
		t.Logf("warning: failed to remove %s: %v", path, err)
	}
}
