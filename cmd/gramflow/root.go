// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for gramflow.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every subcommand.
type rootFlagValues struct {
	verbose    bool
	configPath string
	dir        string
}

// NewRootCommand builds the gramflow command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "gramflow",
		Short: "Build packaged, multi-file ANTLR grammars",
		Long: TitleStyle.Render("gramflow") + SubtitleStyle.Render(" - Build packaged, multi-file ANTLR grammars") + `

gramflow lets grammar sources live in nested folders and routes every
generated file into the package folder its declaration names:

  source tree ──sync──▶ staging ──compile──▶ raw output ──route──▶ final output

The staging directory is reserved: it is cleared on every run and deleted
afterwards. Never keep files there.

` + SubtitleStyle.Render("Examples:") + `
  gramflow init             Create gramflow.cue with the default layout
  gramflow generate         Regenerate sources when grammars changed
  gramflow generate -f      Regenerate unconditionally
  gramflow watch            Regenerate whenever a grammar is saved
  gramflow layout           Explain the directory layout of this project`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&flags.configPath, "config", "", "project file (default is gramflow.cue, .toml or .yaml in the project directory)")
	pf.StringVarP(&flags.dir, "dir", "C", "", "project directory (default is the working directory)")

	rootCmd.AddCommand(
		newGenerateCommand(app, flags),
		newSyncCommand(app, flags),
		newCleanCommand(app, flags),
		newWatchCommand(app, flags),
		newLayoutCommand(app, flags),
		newInitCommand(app, flags),
		newConfigCommand(app, flags),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the code of the failure, if any.
// This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ ")+err.Error())
		os.Exit(ExitFailure)
	}

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.handleError),
	); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// handleError prints errors that were not already rendered by a command,
// such as flag parsing failures.
func (a *App) handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Reported {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
