// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete the raw compiler output and the staging directory",
		Long: `Delete the raw compiler output and the staging directory.

The final output tree is kept; the next generation rebuilds it from scratch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := app.loadProject(cmd.Context(), flags)
			if err != nil {
				return app.reportError(err)
			}
			if err := app.newPipeline(p, false).Clean(cmd.Context()); err != nil {
				return app.reportError(err)
			}
			fmt.Fprintf(app.stdout, "%s Removed %s and %s\n",
				SuccessStyle.Render("✓"), PathStyle.Render(p.Layout.RawDir), PathStyle.Render(p.Layout.StagingDir))
			return nil
		},
	}
}
