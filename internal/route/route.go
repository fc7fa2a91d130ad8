// SPDX-License-Identifier: MPL-2.0

// Package route moves generated source files into a destination tree laid
// out by their declared package.
//
// A file declaring "package a.b;" lands in <dest>/a/b/<name>; a file with no
// recognizable declaration lands under the default package. Routing is not
// transactional: it stops at the first I/O error and files already moved
// stay moved.
package route

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/gramflow/gramflow/internal/fsutil"
	"github.com/gramflow/gramflow/internal/logging"
	"github.com/gramflow/gramflow/internal/pkgdecl"
)

// DefaultPattern selects Java sources at any depth.
const DefaultPattern = "**/*.java"

type (
	// Router relocates generated files.
	Router struct {
		// Pattern is the doublestar glob selecting generated files, relative
		// to the scanned root. Empty means DefaultPattern.
		Pattern string
		// DefaultPackage is used for files without a package declaration.
		DefaultPackage string
		Logger         *log.Logger
	}

	// Move is one relocated file.
	Move struct {
		From    string
		To      string
		Package string
	}

	// Result lists the moves performed, in routing order.
	Result struct {
		Moves []Move
	}
)

// Packages returns the distinct packages files were routed to.
func (r Result) Packages() []string {
	seen := make(map[string]struct{})
	var pkgs []string
	for _, m := range r.Moves {
		if _, ok := seen[m.Package]; ok {
			continue
		}
		seen[m.Package] = struct{}{}
		pkgs = append(pkgs, m.Package)
	}
	return pkgs
}

// Route moves every generated file under scanRoot into destRoot. A missing
// scanRoot routes nothing. On error the returned Result still lists the
// moves completed before the failure.
func (r *Router) Route(ctx context.Context, scanRoot, destRoot string) (Result, error) {
	logger := logging.Component(r.Logger, "route")

	pattern := r.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}

	files, err := fsutil.FindFiles(scanRoot, pattern)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("nothing to route, raw output directory is missing", "dir", scanRoot)
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("scan generated sources: %w", err)
	}

	var res Result
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		mv, err := r.moveOne(file, destRoot)
		if err != nil {
			return res, err
		}
		logger.Debug("routed generated file", "file", filepath.Base(file), "package", mv.Package)
		res.Moves = append(res.Moves, mv)
	}

	logger.Info("routed generated sources", "files", len(res.Moves), "packages", len(res.Packages()), "dest", destRoot)
	return res, nil
}

func (r *Router) moveOne(file, destRoot string) (Move, error) {
	pkg, err := pkgdecl.Extract(file, r.DefaultPackage)
	if err != nil {
		return Move{}, fmt.Errorf("read package declaration: %w", err)
	}

	dir := filepath.Join(destRoot, pkgdecl.ToPath(pkg))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Move{}, fmt.Errorf("create package directory: %w", err)
	}

	dst := filepath.Join(dir, filepath.Base(file))
	if err := fsutil.CopyFile(file, dst); err != nil {
		return Move{}, fmt.Errorf("copy generated file: %w", err)
	}
	if err := os.Remove(file); err != nil {
		return Move{}, fmt.Errorf("remove routed file: %w", err)
	}

	return Move{From: file, To: dst, Package: pkg}, nil
}
