// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gramflow/gramflow/internal/config"
	"github.com/gramflow/gramflow/internal/issue"
)

func newInitCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create gramflow.cue in the project directory",
		Long: `Create gramflow.cue with the default directory layout in the project
directory. An existing project file is never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := flags.dir
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return app.reportError(err)
				}
				dir = wd
			}

			path, err := config.WriteDefault(dir)
			if errors.Is(err, config.ErrConfigExists) {
				return app.reportError(issue.NewErrorContext().
					WithOperation("create project file").
					WithResource(path).
					WithSuggestion("Edit the existing file, or delete it and run 'gramflow init' again").
					Wrap(err).
					BuildError())
			}
			if err != nil {
				return app.reportError(err)
			}

			absPath, _ := filepath.Abs(path)
			fmt.Fprintf(app.stdout, "%s Created %s\n", SuccessStyle.Render("✓"), absPath)
			fmt.Fprintln(app.stdout)
			fmt.Fprintln(app.stdout, SubtitleStyle.Render("Next steps:"))
			fmt.Fprintf(app.stdout, "  1. Put your grammar files under %s\n", CmdStyle.Render(config.DefaultSourceDir))
			fmt.Fprintf(app.stdout, "  2. Run %s to review the layout\n", CmdStyle.Render("gramflow layout"))
			fmt.Fprintf(app.stdout, "  3. Run %s\n", CmdStyle.Render("gramflow generate"))
			return nil
		},
	}
}
