// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/gramflow/gramflow/internal/pkgdecl"
)

func newLayoutCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Explain the directory layout of this project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := app.loadProject(cmd.Context(), flags)
			if err != nil {
				return app.reportError(err)
			}

			md := layoutMarkdown(p)
			if raw {
				fmt.Fprint(app.stdout, md)
				return nil
			}
			out, err := glamour.Render(md, "auto")
			if err != nil {
				return app.reportError(fmt.Errorf("render layout: %w", err))
			}
			fmt.Fprint(app.stdout, out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering")

	return cmd
}

// layoutMarkdown describes the resolved directories, relative to the project
// directory where possible.
func layoutMarkdown(p *Project) string {
	rel := func(path string) string {
		if r, err := filepath.Rel(p.Dir, path); err == nil && !strings.HasPrefix(r, "..") {
			return filepath.ToSlash(r)
		}
		return path
	}
	source := "defaults"
	if p.Config.SourceFile != "" {
		source = "`" + rel(p.Config.SourceFile) + "`"
	}

	var sb strings.Builder
	sb.WriteString("# Directory layout\n\n")
	fmt.Fprintf(&sb, "Project `%s`, configured from %s.\n\n", p.Dir, source)
	sb.WriteString("| Directory | Path | Role |\n|---|---|---|\n")
	fmt.Fprintf(&sb, "| Source tree | `%s` | Grammar files (`%s`) in any folder structure. Never modified. |\n",
		rel(p.Layout.SourceDir), p.Config.Patterns.Grammar)
	fmt.Fprintf(&sb, "| Staging | `%s` | Flat compiler input. **Reserved**: cleared on every run and deleted afterwards. |\n",
		rel(p.Layout.StagingDir))
	fmt.Fprintf(&sb, "| Raw output | `%s` | Compiler output before routing. Removed by `gramflow clean`. |\n",
		rel(p.Layout.RawDir))
	fmt.Fprintf(&sb, "| Final output | `%s` | Generated files (`%s`) in package folders. Rebuilt on every generation. |\n\n",
		rel(p.Layout.FinalDir), p.Config.Patterns.Generated)

	fmt.Fprintf(&sb, "Generated files without a package declaration go to `%s` (`%s`).\n\n",
		p.Layout.DefaultPackage, filepath.ToSlash(pkgdecl.ToPath(p.Layout.DefaultPackage)))
	if p.Config.Sync.StrictNames {
		sb.WriteString("Grammar file names must be unique across the source tree: duplicates fail the run.\n\n")
	} else {
		sb.WriteString("Grammar file names should be unique across the source tree: when two files share a name, the one copied last wins.\n\n")
	}

	sb.WriteString("## Pipeline\n\n")
	sb.WriteString("1. **Guard**: abort if the staging directory holds anything.\n")
	sb.WriteString("2. **Sync**: skip everything if the final output is newer than every grammar, otherwise flatten the source tree into staging.\n")
	sb.WriteString("3. **Generate**: run the compiler with `-visitor -long-messages`.\n")
	sb.WriteString("4. **Route**: delete the final output, then move each generated file into its package folder.\n")
	sb.WriteString("5. **Clean**: delete the staging directory, even when generation failed.\n")
	return sb.String()
}
