// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a callback when grammar sources change.
//
// The whole source tree is watched recursively. Writes to files matching the
// grammar pattern, and removal or renaming of watched directories, are
// collected and coalesced: the callback fires once per debounce window with
// every changed path.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/gramflow/gramflow/internal/fsutil"
	"github.com/gramflow/gramflow/internal/logging"
)

const (
	// DefaultDebounce is the quiet period used when Config.Debounce is unset.
	DefaultDebounce = 500 * time.Millisecond
	// DefaultPattern selects grammar files.
	DefaultPattern = "**/*.g4"
)

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

// defaultIgnores are editor and tool artifacts that never trigger a rebuild.
var defaultIgnores = []string{
	"**/.git/**",
	"**/.antlr/**",
	"**/.idea/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.#*",
	"**/.DS_Store",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// SourceDir is the grammar source tree to watch.
		SourceDir string
		// Pattern is the doublestar glob selecting grammar files relative to
		// SourceDir. Empty means DefaultPattern.
		Pattern string
		// Ignore adds patterns to the built-in ignores.
		Ignore []string
		// Debounce is the quiet period after the last event before OnChange
		// fires. Zero or negative means DefaultDebounce.
		Debounce time.Duration
		Logger   *log.Logger
		// OnChange receives the changed paths relative to SourceDir. Removed
		// directories carry a trailing slash.
		OnChange func(ctx context.Context, changed []string) error
	}

	// Watcher monitors a grammar source tree. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		root     string
		pattern  string
		ignores  []string
		debounce time.Duration
		logger   *log.Logger
		started  atomic.Bool

		// dirs holds the watched directories relative to root. Only the
		// event loop touches it once Run has started.
		dirs map[string]struct{}
	}
)

// New creates a Watcher and registers every non-ignored directory under
// cfg.SourceDir.
func New(cfg Config) (*Watcher, error) {
	if cfg.SourceDir == "" {
		return nil, errors.New("watch: source directory is not set")
	}
	root, err := filepath.Abs(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve source directory: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", root)
	}

	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if err := fsutil.ValidatePattern(pattern); err != nil {
		return nil, fmt.Errorf("watch: invalid grammar pattern: %w", err)
	}
	for _, pat := range cfg.Ignore {
		if err := fsutil.ValidatePattern(pat); err != nil {
			return nil, fmt.Errorf("watch: invalid ignore pattern: %w", err)
		}
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		root:     root,
		pattern:  pattern,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		debounce: debounce,
		logger:   logging.Component(cfg.Logger, "watch"),
		dirs:     make(map[string]struct{}),
	}

	if _, err := w.addTree(root); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			w.logger.Warn("close after init failure", "err", closeErr)
		}
		return nil, err
	}
	w.logger.Debug("watching grammar sources", "dir", root, "dirs", len(w.dirs), "pattern", pattern)
	return w, nil
}

// Run blocks until ctx is canceled, dispatching debounced callbacks. It
// returns nil on cancellation and an error when the underlying watcher
// breaks. A callback error is logged and watching continues. Before
// returning, Run waits for a callback that is still running.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu       sync.Mutex
		pending  = make(map[string]struct{})
		timer    *time.Timer
		stopped  bool
		running  atomic.Bool
		inflight sync.WaitGroup
	)

	// fire runs from the timer goroutine. A run still in progress postpones
	// it by one debounce period so pending changes are never dropped.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("previous run still in progress, postponing")
			mu.Lock()
			if timer != nil && !stopped {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if stopped || len(pending) == 0 {
			mu.Unlock()
			return
		}
		inflight.Add(1)
		defer inflight.Done()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		w.logger.Info("grammar sources changed", "files", len(changed))
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("rebuild failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		inflight.Wait()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			changed := w.handle(evt)
			if len(changed) == 0 {
				continue
			}
			mu.Lock()
			for _, rel := range changed {
				pending[rel] = struct{}{}
			}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalWatchError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// handle maps one event to the changed paths it contributes.
func (w *Watcher) handle(evt fsnotify.Event) []string {
	rel, err := filepath.Rel(w.root, evt.Name)
	if err != nil || w.isIgnored(rel) {
		return nil
	}

	if evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename) {
		if _, ok := w.dirs[rel]; ok {
			w.forgetTree(rel)
			return []string{filepath.ToSlash(rel) + "/"}
		}
	}

	if evt.Has(fsnotify.Create) {
		if info, statErr := os.Stat(evt.Name); statErr == nil && info.IsDir() {
			// Files may land in a new directory before it is registered.
			added, addErr := w.addTree(evt.Name)
			if addErr != nil {
				w.logger.Warn("watch new directory", "dir", evt.Name, "err", addErr)
			}
			return added
		}
	}

	if evt.Op == fsnotify.Chmod || !fsutil.Match(w.pattern, rel) {
		return nil
	}
	return []string{filepath.ToSlash(rel)}
}

// addTree registers dir and every non-ignored directory below it and returns
// the grammar files already present there, relative to the root.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var grammars []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "err", err)
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		if !d.IsDir() {
			if path != w.root && fsutil.Match(w.pattern, rel) && !w.isIgnored(rel) {
				grammars = append(grammars, filepath.ToSlash(rel))
			}
			return nil
		}
		if rel != "." && (w.isIgnored(rel) || w.isIgnored(rel+"/")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		w.dirs[rel] = struct{}{}
		return nil
	})
	return grammars, err
}

// forgetTree drops rel and its subdirectories from the watched set. The
// kernel watches are released by fsnotify when the directories go away.
func (w *Watcher) forgetTree(rel string) {
	prefix := rel + string(filepath.Separator)
	for d := range w.dirs {
		if d == rel || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchesAny(w.ignores, rel)
}

func matchesAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if fsutil.Match(pat, rel) {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}
