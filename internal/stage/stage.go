// SPDX-License-Identifier: MPL-2.0

// Package stage flattens a nested grammar source tree into the flat staging
// directory the grammar compiler reads from.
//
// Every grammar file basename must be unique across the whole source tree.
// By default a duplicate name is not an error: the file copied last wins and
// the collision is logged and reported. StrictNames turns collisions into a
// CollisionError raised before anything is copied.
package stage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/gramflow/gramflow/internal/fsutil"
	"github.com/gramflow/gramflow/internal/logging"
)

// DefaultPattern selects ANTLR 4 grammar files at any depth.
const DefaultPattern = "**/*.g4"

var (
	// ErrSourceTreeMissing is returned when the source tree does not exist.
	ErrSourceTreeMissing = errors.New("grammar source tree not found")
	// ErrNameCollision is the sentinel wrapped by CollisionError.
	ErrNameCollision = errors.New("grammar file name collision")
)

type (
	// Syncer copies grammar files from a source tree into a staging directory.
	Syncer struct {
		// Pattern is the doublestar glob selecting grammar files, relative to
		// the source root. Empty means DefaultPattern.
		Pattern string
		// StrictNames rejects duplicate basenames instead of overwriting.
		StrictNames bool
		// Logger receives progress and collision records. May be nil.
		Logger *log.Logger
	}

	// Collision records two source files flattening to the same name.
	// Winner is the one left in the staging directory.
	Collision struct {
		Name   string
		Loser  string
		Winner string
	}

	// CollisionError lists every duplicate basename found in the source tree.
	CollisionError struct {
		Collisions []Collision
	}

	// Result describes a completed synchronization.
	Result struct {
		// Copied holds the staging path of every copy performed, in copy order.
		// With collisions a staging path appears more than once.
		Copied []string
		// Sources holds the matching source paths in walk order.
		Sources    []string
		Collisions []Collision
	}
)

func (e *CollisionError) Error() string {
	parts := make([]string, 0, len(e.Collisions))
	for _, c := range e.Collisions {
		parts = append(parts, fmt.Sprintf("%s (%s, %s)", c.Name, c.Loser, c.Winner))
	}
	return fmt.Sprintf("%s: %s", ErrNameCollision, strings.Join(parts, "; "))
}

func (e *CollisionError) Unwrap() error { return ErrNameCollision }

// Files returns the distinct staged file names of the result.
func (r Result) Files() []string {
	seen := make(map[string]struct{}, len(r.Copied))
	names := make([]string, 0, len(r.Copied))
	for _, p := range r.Copied {
		name := filepath.Base(p)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Sync clears stagingDir (creating it when absent) and copies every grammar
// file found under sourceRoot into it, discarding subdirectory structure.
// The first I/O error aborts the sync.
func (s *Syncer) Sync(ctx context.Context, sourceRoot, stagingDir string) (Result, error) {
	logger := logging.Component(s.Logger, "sync")

	info, err := os.Stat(sourceRoot)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Result{}, fmt.Errorf("%w: %s", ErrSourceTreeMissing, sourceRoot)
	case err != nil:
		return Result{}, fmt.Errorf("stat source tree: %w", err)
	case !info.IsDir():
		return Result{}, fmt.Errorf("%w: %s is not a directory", ErrSourceTreeMissing, sourceRoot)
	}

	sources, err := fsutil.FindFiles(sourceRoot, s.pattern())
	if err != nil {
		return Result{}, fmt.Errorf("scan source tree: %w", err)
	}

	collisions := findCollisions(sources)
	if len(collisions) > 0 && s.StrictNames {
		return Result{}, &CollisionError{Collisions: collisions}
	}
	for _, c := range collisions {
		logger.Warn("grammar name collision, last copy wins", "name", c.Name, "overwritten", c.Loser, "kept", c.Winner)
	}

	if err := fsutil.ClearDir(stagingDir); err != nil {
		return Result{}, fmt.Errorf("clear staging directory: %w", err)
	}

	res := Result{Sources: sources, Collisions: collisions}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		dst := filepath.Join(stagingDir, filepath.Base(src))
		if err := fsutil.CopyFile(src, dst); err != nil {
			return res, fmt.Errorf("stage %s: %w", src, err)
		}
		logger.Debug("staged grammar", "source", src, "staged", dst)
		res.Copied = append(res.Copied, dst)
	}

	logger.Info("synchronized grammar sources", "files", len(res.Files()), "staging", stagingDir)
	return res, nil
}

func (s *Syncer) pattern() string {
	if s.Pattern == "" {
		return DefaultPattern
	}
	return s.Pattern
}

// findCollisions pairs each source with the later source of the same
// basename that overwrites it. sources must be in copy order.
func findCollisions(sources []string) []Collision {
	last := make(map[string]string, len(sources))
	var collisions []Collision
	for _, src := range sources {
		name := filepath.Base(src)
		if prev, ok := last[name]; ok {
			collisions = append(collisions, Collision{Name: name, Loser: prev, Winner: src})
		}
		last[name] = src
	}
	return collisions
}
