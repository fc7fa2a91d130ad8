// SPDX-License-Identifier: MPL-2.0

// Package stale decides whether the grammar source tree changed since the
// last successful generation, using only filesystem timestamps.
//
// The source side is the newest modification time over every grammar file
// and every directory of the source tree; directory times move when a file
// is added, removed or renamed. The output side is the oldest modification
// time over the generated files of the final output tree, which is rebuilt
// from scratch by every successful run.
//
// A successful run leaves the raw generated tree present and drained. A
// missing raw tree (after a full clean) or one still holding generated files
// (after a failed routing) means the final tree cannot be trusted.
package stale

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gramflow/gramflow/internal/fsutil"
)

type (
	// Fingerprint summarizes one side of the comparison.
	Fingerprint struct {
		Files int
		// Time is the newest (sources) or oldest (outputs) modification time.
		Time time.Time
	}

	// Verdict is the outcome of a probe.
	Verdict struct {
		UpToDate bool
		Reason   string
		Sources  Fingerprint
		Outputs  Fingerprint
	}

	// Options configures a probe.
	Options struct {
		SourceRoot       string
		RawRoot          string // empty skips the raw tree check
		FinalRoot        string
		GrammarPattern   string
		GeneratedPattern string
	}
)

// Probe compares the source tree against the final output tree. It never
// modifies the filesystem. A missing source tree is reported as stale so the
// synchronizer can raise the proper error. A source tree without grammars is
// up to date once the raw and final trees hold no generated files.
func Probe(opts Options) (Verdict, error) {
	src, err := sourceFingerprint(opts.SourceRoot, opts.GrammarPattern)
	if errors.Is(err, fs.ErrNotExist) {
		return Verdict{Reason: "source tree missing"}, nil
	}
	if err != nil {
		return Verdict{}, fmt.Errorf("fingerprint source tree: %w", err)
	}

	if opts.RawRoot != "" {
		leftovers, err := fsutil.FindFiles(opts.RawRoot, opts.GeneratedPattern)
		if errors.Is(err, fs.ErrNotExist) {
			return Verdict{Reason: "raw tree missing", Sources: src}, nil
		}
		if err != nil {
			return Verdict{}, fmt.Errorf("inspect raw tree: %w", err)
		}
		if len(leftovers) > 0 {
			return Verdict{Reason: "raw tree not drained", Sources: src}, nil
		}
	}

	out, err := outputFingerprint(opts.FinalRoot, opts.GeneratedPattern)
	outMissing := errors.Is(err, fs.ErrNotExist)
	if err != nil && !outMissing {
		return Verdict{}, fmt.Errorf("fingerprint output tree: %w", err)
	}

	v := Verdict{Sources: src, Outputs: out}
	switch {
	case src.Files == 0 && out.Files == 0:
		v.UpToDate = true
		v.Reason = "no grammars"
	case outMissing:
		v.Reason = "output tree missing"
	case src.Files == 0:
		v.Reason = "sources removed"
	case out.Files == 0:
		v.Reason = "output tree empty"
	case src.Time.After(out.Time):
		v.Reason = "sources changed"
	default:
		v.UpToDate = true
		v.Reason = "up to date"
	}
	return v, nil
}

func sourceFingerprint(root, pattern string) (Fingerprint, error) {
	if err := fsutil.ValidatePattern(pattern); err != nil {
		return Fingerprint{}, err
	}
	var fp Fingerprint
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}
			if !fsutil.Match(pattern, rel) {
				return nil
			}
			fp.Files++
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(fp.Time) {
			fp.Time = info.ModTime()
		}
		return nil
	})
	return fp, err
}

func outputFingerprint(root, pattern string) (Fingerprint, error) {
	files, err := fsutil.FindFiles(root, pattern)
	if err != nil {
		return Fingerprint{}, err
	}
	fp := Fingerprint{Files: len(files)}
	for _, f := range files {
		info, err := os.Lstat(f)
		if err != nil {
			return Fingerprint{}, err
		}
		if fp.Time.IsZero() || info.ModTime().Before(fp.Time) {
			fp.Time = info.ModTime()
		}
	}
	return fp, nil
}
