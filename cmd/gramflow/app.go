// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/gramflow/gramflow/internal/compiler"
	"github.com/gramflow/gramflow/internal/config"
	"github.com/gramflow/gramflow/internal/issue"
	"github.com/gramflow/gramflow/internal/logging"
	"github.com/gramflow/gramflow/internal/pipeline"
	"github.com/gramflow/gramflow/internal/route"
	"github.com/gramflow/gramflow/internal/stage"
)

type (
	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App reference.
	App struct {
		Config    ConfigProvider
		Compilers CompilerFactory
		stdout    io.Writer
		stderr    io.Writer
		// verbose is resolved from --verbose and ui.verbose on project load.
		verbose bool
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config    ConfigProvider
		Compilers CompilerFactory
		Stdout    io.Writer
		Stderr    io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// CompilerFactory builds the grammar compiler for a loaded project.
	CompilerFactory func(p *Project, stdout, stderr io.Writer) compiler.Compiler

	// Project is a loaded configuration together with its resolved layout.
	Project struct {
		Dir    string
		Config *config.Config
		Layout pipeline.Layout
		Logger *log.Logger
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Compilers == nil {
		deps.Compilers = newToolCompiler
	}

	return &App{
		Config:    deps.Config,
		Compilers: deps.Compilers,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}, nil
}

// newToolCompiler runs the compiler configured in the project file.
func newToolCompiler(p *Project, stdout, stderr io.Writer) compiler.Compiler {
	c := p.Config.Compiler
	return &compiler.Tool{
		Command: c.Command,
		Java:    c.Java,
		Jar:     c.Jar,
		MaxHeap: c.MaxHeap.String(),
		Args:    c.Args,
		BaseDir: p.Dir,
		Stdout:  stdout,
		Stderr:  stderr,
		Logger:  p.Logger,
	}
}

// loadProject resolves the project directory, loads its configuration and
// builds the logger for this invocation.
func (a *App) loadProject(ctx context.Context, flags *rootFlagValues) (*Project, error) {
	dir := flags.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}

	a.verbose = flags.verbose
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath, ProjectDir: dir})
	if err != nil {
		return nil, err
	}
	if !a.verbose {
		a.verbose = cfg.UI.Verbose
	}

	return &Project{
		Dir:    dir,
		Config: cfg,
		Layout: pipeline.Layout{
			SourceDir:      cfg.Paths.Source,
			StagingDir:     cfg.Paths.Staging,
			RawDir:         cfg.Paths.Raw,
			FinalDir:       cfg.Paths.Final,
			DefaultPackage: cfg.DefaultPackage.String(),
		}.Resolve(dir),
		Logger: logging.New(a.stderr, a.verbose),
	}, nil
}

// newPipeline assembles the pipeline stages from the project configuration.
func (a *App) newPipeline(p *Project, force bool) *pipeline.Pipeline {
	pl := &pipeline.Pipeline{
		Layout: p.Layout,
		Syncer: &stage.Syncer{
			Pattern:     p.Config.Patterns.Grammar,
			StrictNames: p.Config.Sync.StrictNames,
			Logger:      p.Logger,
		},
		Router: &route.Router{
			Pattern:        p.Config.Patterns.Generated,
			DefaultPackage: p.Layout.DefaultPackage,
			Logger:         p.Logger,
		},
		Compiler: a.Compilers(p, a.stdout, a.stderr),
		Logger:   p.Logger,
		Force:    force,
	}
	if a.verbose {
		pl.Observer = func(s pipeline.State) {
			fmt.Fprintf(a.stderr, "%s %s\n", VerboseStyle.Render("→"), VerboseHighlightStyle.Render(s.String()))
		}
	}
	return pl
}

// reportError renders err with its suggestions and, when it is linked to a
// catalog page, the page itself. The returned ExitError carries the exit code.
func (a *App) reportError(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Reported {
		return err
	}

	fmt.Fprintf(a.stderr, "%s %s\n", ErrorStyle.Render("✗"), formatErrorForDisplay(err, a.verbose))
	if page := issue.Get(issue.IDOf(err)); page != nil {
		if rendered, renderErr := page.Render("auto"); renderErr == nil {
			fmt.Fprint(a.stderr, rendered)
		}
	}
	return &ExitError{Code: exitCodeFor(err), Err: err, Reported: true}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
