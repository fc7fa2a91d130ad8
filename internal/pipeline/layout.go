// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidLayout is the sentinel wrapped by every layout validation error.
var ErrInvalidLayout = errors.New("invalid directory layout")

// Layout locates the four pipeline directories.
type Layout struct {
	// SourceDir is the nested grammar source tree. Never modified.
	SourceDir string
	// StagingDir is the flat compiler input. Reserved for the pipeline:
	// cleared on sync and deleted after generation.
	StagingDir string
	// RawDir receives the compiler output before routing.
	RawDir string
	// FinalDir receives the package-structured generated sources. Rebuilt
	// from scratch on every generation.
	FinalDir string
	// DefaultPackage is used for generated files without a package declaration.
	DefaultPackage string
}

// Resolve returns a copy of l with every relative directory joined to base.
func (l Layout) Resolve(base string) Layout {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}
	l.SourceDir = abs(l.SourceDir)
	l.StagingDir = abs(l.StagingDir)
	l.RawDir = abs(l.RawDir)
	l.FinalDir = abs(l.FinalDir)
	return l
}

// Validate rejects layouts in which clearing the staging or raw directory,
// or rebuilding the final tree, would destroy another tree.
func (l Layout) Validate() error {
	for _, d := range []struct{ name, path string }{
		{"source", l.SourceDir},
		{"staging", l.StagingDir},
		{"raw", l.RawDir},
		{"final", l.FinalDir},
	} {
		if strings.TrimSpace(d.path) == "" || d.path == "." {
			return fmt.Errorf("%w: %s directory is not set", ErrInvalidLayout, d.name)
		}
	}
	if l.DefaultPackage == "" {
		return fmt.Errorf("%w: default package is not set", ErrInvalidLayout)
	}

	for _, d := range []struct{ name, path string }{
		{"source", l.SourceDir},
		{"raw", l.RawDir},
		{"final", l.FinalDir},
	} {
		if within(l.StagingDir, d.path) {
			return fmt.Errorf("%w: staging directory %s must not be or contain the %s directory %s",
				ErrInvalidLayout, l.StagingDir, d.name, d.path)
		}
	}
	if within(l.SourceDir, l.StagingDir) {
		return fmt.Errorf("%w: staging directory %s must not lie inside the source tree %s",
			ErrInvalidLayout, l.StagingDir, l.SourceDir)
	}
	for _, d := range []struct{ name, path string }{
		{"source", l.SourceDir},
		{"staging", l.StagingDir},
		{"final", l.FinalDir},
	} {
		if within(l.RawDir, d.path) {
			return fmt.Errorf("%w: raw directory %s must not be or contain the %s directory %s",
				ErrInvalidLayout, l.RawDir, d.name, d.path)
		}
	}
	if within(l.FinalDir, l.RawDir) {
		return fmt.Errorf("%w: final directory %s must not be or contain the raw directory %s",
			ErrInvalidLayout, l.FinalDir, l.RawDir)
	}
	if within(l.FinalDir, l.SourceDir) {
		return fmt.Errorf("%w: final directory %s must not be or contain the source tree %s",
			ErrInvalidLayout, l.FinalDir, l.SourceDir)
	}
	return nil
}

// within reports whether path equals dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
