// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gramflow/gramflow/internal/pipeline"
)

func newGenerateCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen"},
		Short:   "Synchronize, compile and route grammar sources",
		Long: `Run the whole pipeline: check that the staging directory is empty,
flatten the grammar sources into it, run the grammar compiler, move every
generated file into the package folder it declares, then delete the staging
directory.

Nothing is touched when the final output is newer than every grammar source.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd.Context(), app, flags, force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "regenerate even when the output is up to date")

	return cmd
}

func runGenerate(ctx context.Context, app *App, flags *rootFlagValues, force bool) error {
	p, err := app.loadProject(ctx, flags)
	if err != nil {
		return app.reportError(err)
	}
	rep, err := app.newPipeline(p, force).Run(ctx)
	if err != nil {
		return app.reportError(err)
	}
	app.printReport(p, rep)
	return nil
}

// printReport writes the one-line summary of a successful run.
func (a *App) printReport(p *Project, rep pipeline.Report) {
	if rep.UpToDate {
		fmt.Fprintf(a.stdout, "%s Up to date %s\n",
			SuccessStyle.Render("✓"),
			SubtitleStyle.Render(fmt.Sprintf("(%d grammar files, %s)", rep.Verdict.Sources.Files, p.Layout.FinalDir)))
		return
	}

	fmt.Fprintf(a.stdout, "%s Generated %d files in %d packages from %d grammars %s\n",
		SuccessStyle.Render("✓"),
		len(rep.Route.Moves),
		len(rep.Route.Packages()),
		len(rep.Sync.Files()),
		SubtitleStyle.Render("("+rep.Elapsed.Round(time.Millisecond).String()+")"))
	for _, c := range rep.Sync.Collisions {
		fmt.Fprintf(a.stdout, "  %s %s: %s overwrote %s\n",
			WarningStyle.Render("!"), c.Name, c.Winner, c.Loser)
	}
	if a.verbose {
		for _, s := range rep.Visited {
			if d, ok := rep.Durations[s]; ok && d > 0 {
				fmt.Fprintf(a.stdout, "  %s %s\n", VerboseStyle.Render(s.String()), VerboseStyle.Render(d.Round(time.Microsecond).String()))
			}
		}
	}
}
