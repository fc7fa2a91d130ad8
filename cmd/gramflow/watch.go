// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gramflow/gramflow/internal/watch"
)

func newWatchCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate whenever grammar sources change",
		Long: `Run the pipeline once, then watch the source tree and run it again each
time grammar files are written, created, removed or renamed. Bursts of
changes are coalesced (see watch.debounce).

A failed run is reported and watching continues. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), app, flags, force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "regenerate on start even when the output is up to date")

	return cmd
}

// runWatch executes the pipeline once immediately, then starts the watcher
// loop. The watcher blocks until the context is canceled.
func runWatch(ctx context.Context, app *App, flags *rootFlagValues, force bool) error {
	p, err := app.loadProject(ctx, flags)
	if err != nil {
		return app.reportError(err)
	}
	debounce, err := p.Config.Watch.DebounceDuration()
	if err != nil {
		return app.reportError(err)
	}

	rebuild := func(ctx context.Context, force bool) {
		rep, err := app.newPipeline(p, force).Run(ctx)
		if err != nil {
			// Failures are reported, never fatal.
			fmt.Fprintf(app.stderr, "%s %s\n", ErrorStyle.Render("✗"), formatErrorForDisplay(err, app.verbose))
			return
		}
		app.printReport(p, rep)
	}

	fmt.Fprintf(app.stdout, "%s Watch mode: initial generation\n", VerboseHighlightStyle.Render("→"))
	rebuild(ctx, force)

	w, err := watch.New(watch.Config{
		SourceDir: p.Layout.SourceDir,
		Pattern:   p.Config.Patterns.Grammar,
		Debounce:  debounce,
		Logger:    p.Logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(app.stdout, "\n%s Detected %d change(s), regenerating\n",
				VerboseHighlightStyle.Render("→"), len(changed))
			// Deleted grammars do not always move timestamps forward.
			rebuild(ctx, true)
			return nil
		},
	})
	if err != nil {
		return app.reportError(err)
	}

	fmt.Fprintf(app.stdout, "%s Watching %s for changes (Ctrl+C to stop)\n",
		VerboseHighlightStyle.Render("→"), PathStyle.Render(p.Layout.SourceDir))
	if err := w.Run(ctx); err != nil {
		return app.reportError(err)
	}
	return nil
}
