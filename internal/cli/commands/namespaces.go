package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/nsbrowse/internal/cli/output"
	"github.com/leapstack-labs/nsbrowse/internal/view"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"github.com/spf13/cobra"
)

// NewNamespacesCommand creates the namespaces command.
func NewNamespacesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "namespaces",
		Aliases: []string{"ns"},
		Short:   "List namespaces",
		Long: `List the namespaces of the macros directory, filtered by load state and
a name pattern.

A pattern is a case-insensitive regular expression matched anywhere in the
name. An invalid pattern matches nothing and is reported as a warning.`,
		Example: `  # List every namespace
  nsbrowse namespaces

  # Only loaded namespaces whose name contains "util"
  nsbrowse namespaces --namespace-mode loaded --namespace-pattern util

  # As JSON
  nsbrowse namespaces -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return runNamespaces(cmd, app)
		},
	}

	cmd.Flags().String("namespace-mode", "", "Namespaces to list (loaded|unloaded|all)")
	cmd.Flags().String("namespace-pattern", "", "Regular expression matched against namespace names")
	_ = cmd.RegisterFlagCompletionFunc("namespace-mode", completeLabels(core.NamespaceModes()))

	return cmd
}

func runNamespaces(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()
	if err := app.refresh(ctx); err != nil {
		return err
	}

	dm := app.Engine.Display()
	r := app.Renderer
	if dm.NamespaceInvalidPattern {
		r.Warning(fmt.Sprintf("invalid namespace pattern %q", app.Cfg.Browse.NamespacePattern))
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := make([]output.NamespaceOutput, 0, len(dm.NamespaceRows))
		for _, row := range dm.NamespaceRows {
			out = append(out, output.NamespaceOutput{
				Name:        row.Name,
				Loaded:      row.Loaded,
				MemberCount: row.MemberCount,
				Source:      row.Source,
			})
		}
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("Namespaces (%d)", dm.NamespaceMatchCount))
	if len(dm.NamespaceRows) == 0 {
		r.Muted("No namespaces match.")
		return nil
	}
	r.Table(namespaceTable(dm.NamespaceRows))
	return nil
}

func namespaceTable(rows []view.NamespaceRow) ([]string, [][]string) {
	body := make([][]string, 0, len(rows))
	for _, row := range rows {
		body = append(body, []string{
			row.Name,
			yesNo(row.Loaded),
			strconv.Itoa(row.MemberCount),
			row.Source,
		})
	}
	return []string{"Name", "Loaded", "Members", "Source"}, body
}

// completeLabels completes flag values from the labels of an enum.
func completeLabels[T fmt.Stringer](values []T) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	labels := make([]string, len(values))
	for i, v := range values {
		labels[i] = v.String()
	}
	return func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return labels, cobra.ShellCompDirectiveNoFileComp
	}
}
