// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gramflow/gramflow/internal/config"
)

// newConfigCommand creates the `gramflow config` command tree.
func newConfigCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the project configuration",
		Long: `Inspect the project configuration.

Configuration is read from the first of gramflow.cue, gramflow.toml,
gramflow.yaml found in the project directory, or from --config. Any key can
be overridden from the environment, e.g. GRAMFLOW_PATHS_FINAL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := app.loadProject(cmd.Context(), flags)
			if err != nil {
				return app.reportError(err)
			}
			source := "(defaults)"
			if p.Config.SourceFile != "" {
				source = p.Config.SourceFile
			}
			fmt.Fprintf(app.stdout, "// source: %s\n", source)
			fmt.Fprint(app.stdout, config.GenerateCUE(p.Config))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the project file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := app.loadProject(cmd.Context(), flags)
			if err != nil {
				return app.reportError(err)
			}
			if p.Config.SourceFile == "" {
				fmt.Fprintf(app.stdout, "%s\n", SubtitleStyle.Render("(using defaults)"))
				return nil
			}
			fmt.Fprintln(app.stdout, p.Config.SourceFile)
			return nil
		},
	})

	return cfgCmd
}
