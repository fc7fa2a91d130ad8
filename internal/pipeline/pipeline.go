// SPDX-License-Identifier: MPL-2.0

// Package pipeline coordinates one grammar build:
//
//	IDLE → GUARD_CHECK → SYNCING → GENERATING → ROUTING → CLEANING → DONE
//
// GUARD_CHECK aborts when the staging directory holds anything, before any
// mutation. SYNCING short-circuits to DONE when the final output tree is
// newer than every grammar source. Once the synchronizer has run the staging
// directory is deleted in CLEANING, whether or not later stages failed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gramflow/gramflow/internal/compiler"
	"github.com/gramflow/gramflow/internal/fsutil"
	"github.com/gramflow/gramflow/internal/issue"
	"github.com/gramflow/gramflow/internal/logging"
	"github.com/gramflow/gramflow/internal/route"
	"github.com/gramflow/gramflow/internal/stage"
	"github.com/gramflow/gramflow/internal/stale"
)

// ErrStagingNotEmpty is the sentinel wrapped by GuardError.
var ErrStagingNotEmpty = errors.New("staging directory is not empty")

type (
	// GuardError reports a pre-populated staging directory.
	GuardError struct {
		Dir string
	}

	// Pipeline runs the grammar build for one Layout.
	Pipeline struct {
		Layout   Layout
		Syncer   *stage.Syncer
		Router   *route.Router
		Compiler compiler.Compiler
		Logger   *log.Logger
		// Force skips the staleness probe.
		Force bool
		// Observer is called on every state transition. May be nil.
		Observer func(State)
	}

	// Report summarizes a run.
	Report struct {
		// State is the last state entered: StateDone, StateAborted, or the
		// state that was executing when the run failed.
		State State
		// Visited lists every state entered, in order.
		Visited []State
		// FailedIn is the state whose work failed, StateIdle on success.
		FailedIn State
		UpToDate bool
		Verdict  stale.Verdict
		Sync     stage.Result
		Route    route.Result
		// Durations holds the wall time spent in each visited state.
		Durations map[State]time.Duration
		Elapsed   time.Duration
	}

	// run tracks the progress of one Run or Sync call.
	run struct {
		p       *Pipeline
		logger  *log.Logger
		report  Report
		start   time.Time
		entered time.Time
	}
)

func (e *GuardError) Error() string {
	return fmt.Sprintf("staging directory %s is not empty: it is reserved for generated input and cleared on every run, remove all files from this directory and run again", e.Dir)
}

func (e *GuardError) Unwrap() error { return ErrStagingNotEmpty }

// Run executes the full pipeline. The returned Report is valid even when an
// error is returned.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	r := p.newRun()
	if err := r.prepare(); err != nil {
		return r.finish(), err
	}

	r.enter(StateSyncing)
	if !p.Force {
		verdict, err := stale.Probe(stale.Options{
			SourceRoot:       p.Layout.SourceDir,
			RawRoot:          p.Layout.RawDir,
			FinalRoot:        p.Layout.FinalDir,
			GrammarPattern:   orDefault(p.syncer().Pattern, stage.DefaultPattern),
			GeneratedPattern: orDefault(p.router().Pattern, route.DefaultPattern),
		})
		if err != nil {
			return r.fail(classify(err, "check generated sources", p.Layout.SourceDir))
		}
		r.report.Verdict = verdict
		if verdict.UpToDate {
			r.logger.Info("generated sources are up to date", "final", p.Layout.FinalDir)
			r.report.UpToDate = true
			r.enter(StateDone)
			return r.finish(), nil
		}
		r.logger.Debug("generated sources are stale", "reason", verdict.Reason)
	}

	err := r.generate(ctx)

	r.enter(StateCleaning)
	if cleanErr := os.RemoveAll(p.Layout.StagingDir); cleanErr != nil {
		cleanErr = classify(cleanErr, "remove staging directory", p.Layout.StagingDir)
		if err == nil {
			return r.fail(cleanErr)
		}
		err = errors.Join(err, cleanErr)
	} else {
		r.logger.Debug("removed staging directory", "dir", p.Layout.StagingDir)
	}
	if err != nil {
		rep := r.finish()
		rep.State = rep.FailedIn
		return rep, err
	}

	r.enter(StateDone)
	r.logger.Info("generated grammar sources",
		"grammars", len(r.report.Sync.Files()),
		"files", len(r.report.Route.Moves),
		"packages", len(r.report.Route.Packages()))
	return r.finish(), nil
}

// Sync runs the guard and the synchronizer only, leaving the staging
// directory populated for inspection. The next Run aborts in GUARD_CHECK
// until the staging directory is removed, for instance by Clean.
func (p *Pipeline) Sync(ctx context.Context) (Report, error) {
	r := p.newRun()
	if err := r.prepare(); err != nil {
		return r.finish(), err
	}

	r.enter(StateSyncing)
	res, err := p.syncer().Sync(ctx, p.Layout.SourceDir, p.Layout.StagingDir)
	r.report.Sync = res
	if err != nil {
		return r.fail(classifySync(err, p.Layout.SourceDir))
	}

	r.enter(StateDone)
	return r.finish(), nil
}

// Clean deletes the raw generated tree and the staging directory. The final
// output tree is left alone; the next generation rebuilds it.
func (p *Pipeline) Clean(ctx context.Context) error {
	if err := p.Layout.Validate(); err != nil {
		return layoutError(err)
	}
	logger := logging.Component(p.Logger, "pipeline")

	for _, dir := range []string{p.Layout.RawDir, p.Layout.StagingDir} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.RemoveAll(dir); err != nil {
			return classify(err, "clean", dir)
		}
		logger.Debug("removed directory", "dir", dir)
	}
	logger.Info("cleaned generated inputs", "raw", p.Layout.RawDir, "staging", p.Layout.StagingDir)
	return nil
}

// Guard fails with a GuardError when the staging directory exists and holds
// any entry. It never modifies the filesystem.
func (p *Pipeline) Guard() error {
	exists, empty, err := fsutil.DirState(p.Layout.StagingDir)
	if err != nil {
		return fmt.Errorf("inspect staging directory: %w", err)
	}
	if exists && !empty {
		return &GuardError{Dir: p.Layout.StagingDir}
	}
	return nil
}

func (p *Pipeline) newRun() *run {
	now := time.Now()
	return &run{
		p:       p,
		logger:  logging.Component(p.Logger, "pipeline"),
		start:   now,
		entered: now,
		report: Report{
			State:     StateIdle,
			Visited:   []State{StateIdle},
			Durations: make(map[State]time.Duration),
		},
	}
}

// prepare validates the layout and runs GUARD_CHECK.
func (r *run) prepare() error {
	if err := r.p.Layout.Validate(); err != nil {
		r.report.FailedIn = StateIdle
		return layoutError(err)
	}

	r.enter(StateGuardCheck)
	if err := r.p.Guard(); err != nil {
		r.report.FailedIn = StateGuardCheck
		var guardErr *GuardError
		if errors.As(err, &guardErr) {
			r.enter(StateAborted)
			return issue.NewErrorContext().
				WithOperation("check staging directory").
				WithResource(guardErr.Dir).
				WithIssue(issue.StagingNotEmptyId).
				WithSuggestion("Remove all files from this directory, then run again").
				WithSuggestion("Run 'gramflow clean' if the files were left by 'gramflow sync'").
				Wrap(err).
				BuildError()
		}
		return classify(err, "check staging directory", r.p.Layout.StagingDir)
	}
	return nil
}

// generate runs SYNCING, GENERATING and ROUTING, stopping at the first error.
func (r *run) generate(ctx context.Context) error {
	p := r.p

	res, err := p.syncer().Sync(ctx, p.Layout.SourceDir, p.Layout.StagingDir)
	r.report.Sync = res
	if err != nil {
		r.report.FailedIn = StateSyncing
		return classifySync(err, p.Layout.SourceDir)
	}

	r.enter(StateGenerating)
	if err := fsutil.ClearDir(p.Layout.RawDir); err != nil {
		r.report.FailedIn = StateGenerating
		return classify(err, "clear raw output directory", p.Layout.RawDir)
	}
	inv := compiler.Invocation{
		InputDir:  p.Layout.StagingDir,
		Grammars:  res.Files(),
		OutputDir: p.Layout.RawDir,
	}
	if p.Compiler == nil {
		r.report.FailedIn = StateGenerating
		return classifyCompile(fmt.Errorf("%w: no compiler configured", compiler.ErrCompilerNotFound), p.Layout.StagingDir)
	}
	if err := p.Compiler.Compile(ctx, inv); err != nil {
		r.report.FailedIn = StateGenerating
		return classifyCompile(err, p.Layout.StagingDir)
	}

	r.enter(StateRouting)
	if err := os.RemoveAll(p.Layout.FinalDir); err != nil {
		r.report.FailedIn = StateRouting
		return classify(err, "remove final output tree", p.Layout.FinalDir)
	}
	routed, err := p.router().Route(ctx, p.Layout.RawDir, p.Layout.FinalDir)
	r.report.Route = routed
	if err != nil {
		r.report.FailedIn = StateRouting
		return routeError(err, p.Layout.RawDir)
	}
	return nil
}

func (r *run) enter(s State) {
	now := time.Now()
	r.report.Durations[r.report.State] += now.Sub(r.entered)
	r.entered = now
	r.report.State = s
	r.report.Visited = append(r.report.Visited, s)
	r.logger.Debug("pipeline state", "state", s)
	if r.p.Observer != nil {
		r.p.Observer(s)
	}
}

func (r *run) fail(err error) (Report, error) {
	r.report.FailedIn = r.report.State
	return r.finish(), err
}

func (r *run) finish() Report {
	now := time.Now()
	r.report.Durations[r.report.State] += now.Sub(r.entered)
	r.entered = now
	r.report.Elapsed = now.Sub(r.start)
	return r.report
}

func (p *Pipeline) syncer() *stage.Syncer {
	if p.Syncer == nil {
		p.Syncer = &stage.Syncer{Logger: p.Logger}
	}
	return p.Syncer
}

func (p *Pipeline) router() *route.Router {
	if p.Router == nil {
		p.Router = &route.Router{DefaultPackage: p.Layout.DefaultPackage, Logger: p.Logger}
	}
	return p.Router
}

func orDefault(pattern, def string) string {
	if pattern == "" {
		return def
	}
	return pattern
}

func layoutError(err error) error {
	return issue.NewErrorContext().
		WithOperation("validate directory layout").
		WithIssue(issue.InvalidLayoutId).
		WithSuggestion("Review the paths section of the project file").
		Wrap(err).
		BuildError()
}

// classify wraps err with a permission-denied page when applicable.
func classify(err error, operation, resource string) error {
	if errors.Is(err, fs.ErrPermission) {
		return issue.NewErrorContext().
			WithOperation(operation).
			WithResource(resource).
			WithIssue(issue.PermissionDeniedId).
			Wrap(err).
			BuildError()
	}
	return issue.WrapWithContext(err, operation, resource)
}

func classifySync(err error, sourceDir string) error {
	var collisionErr *stage.CollisionError
	switch {
	case errors.Is(err, stage.ErrSourceTreeMissing):
		return issue.NewErrorContext().
			WithOperation("synchronize grammar sources").
			WithResource(sourceDir).
			WithIssue(issue.SourceTreeMissingId).
			WithSuggestion("Create the directory or set paths.source in the project file").
			Wrap(err).
			BuildError()
	case errors.As(err, &collisionErr):
		b := issue.NewErrorContext().
			WithOperation("synchronize grammar sources").
			WithResource(sourceDir).
			WithIssue(issue.GrammarNameCollisionId)
		for _, c := range collisionErr.Collisions {
			b.WithSuggestion(fmt.Sprintf("Rename %s or %s", c.Loser, c.Winner))
		}
		return b.Wrap(err).BuildError()
	default:
		return classify(err, "synchronize grammar sources", sourceDir)
	}
}

func classifyCompile(err error, stagingDir string) error {
	switch {
	case errors.Is(err, compiler.ErrCompilerNotFound):
		return issue.NewErrorContext().
			WithOperation("start grammar compiler").
			WithIssue(issue.CompilerNotFoundId).
			WithSuggestion("Set compiler.java and compiler.jar, or compiler.command").
			Wrap(err).
			BuildError()
	case errors.Is(err, compiler.ErrCompileFailed):
		return issue.NewErrorContext().
			WithOperation("compile grammars").
			WithResource(stagingDir).
			WithIssue(issue.CompileFailedId).
			Wrap(err).
			BuildError()
	default:
		return classify(err, "compile grammars", stagingDir)
	}
}

func routeError(err error, rawDir string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return issue.WrapWithContext(err, "route generated sources", rawDir)
	}
	return issue.NewErrorContext().
		WithOperation("route generated sources").
		WithResource(rawDir).
		WithIssue(issue.RoutingFailedId).
		Wrap(err).
		BuildError()
}
