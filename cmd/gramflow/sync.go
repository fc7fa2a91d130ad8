// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCommand(app *App, flags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Flatten grammar sources into the staging directory",
		Long: `Check that the staging directory is empty and copy every grammar file
of the source tree into it, without compiling.

The staging directory is left populated for inspection, so the next
'gramflow generate' refuses to run until 'gramflow clean' removes it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := app.loadProject(cmd.Context(), flags)
			if err != nil {
				return app.reportError(err)
			}
			rep, err := app.newPipeline(p, false).Sync(cmd.Context())
			if err != nil {
				return app.reportError(err)
			}

			fmt.Fprintf(app.stdout, "%s Staged %d grammars into %s\n",
				SuccessStyle.Render("✓"), len(rep.Sync.Files()), PathStyle.Render(p.Layout.StagingDir))
			for _, c := range rep.Sync.Collisions {
				fmt.Fprintf(app.stdout, "  %s %s: %s overwrote %s\n",
					WarningStyle.Render("!"), c.Name, c.Winner, c.Loser)
			}
			fmt.Fprintf(app.stdout, "%s Run %s before the next generate\n",
				WarningStyle.Render("!"), CmdStyle.Render("gramflow clean"))
			return nil
		},
	}
}
