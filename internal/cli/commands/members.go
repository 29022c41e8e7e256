package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/nsbrowse/internal/cli/output"
	"github.com/leapstack-labs/nsbrowse/internal/view"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"github.com/spf13/cobra"
)

// NewMembersCommand creates the members command.
func NewMembersCommand() *cobra.Command {
	var requireFirst bool

	cmd := &cobra.Command{
		Use:   "members <namespace>",
		Short: "List the members of a namespace",
		Long: `List the members of a namespace, filtered by kind and a name pattern.

An unloaded namespace has no members; pass --require to load it first.`,
		Example: `  # Public functions of main
  nsbrowse members main --require

  # Everything defined in util, as markdown
  nsbrowse members util --member-mode map -o markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return runMembers(cmd, app, args[0], requireFirst)
		},
	}

	cmd.Flags().String("member-mode", "", "Members to list (publics|privates|interns|...|traced)")
	cmd.Flags().String("member-pattern", "", "Regular expression matched against member names")
	cmd.Flags().BoolVar(&requireFirst, "require", false, "Load the namespace before listing")
	_ = cmd.RegisterFlagCompletionFunc("member-mode", completeLabels(core.MemberModes()))

	return cmd
}

func runMembers(cmd *cobra.Command, app *App, namespace string, requireFirst bool) error {
	ctx := cmd.Context()
	if err := app.refresh(ctx); err != nil {
		return err
	}
	if err := app.showNamespace(namespace); err != nil {
		return err
	}
	if requireFirst {
		if err := app.require(ctx, namespace); err != nil {
			return err
		}
	}

	dm := app.Engine.Display()
	r := app.Renderer
	if dm.MemberInvalidPattern {
		r.Warning(fmt.Sprintf("invalid member pattern %q", app.Cfg.Browse.MemberPattern))
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := make([]output.MemberOutput, 0, len(dm.MemberRows))
		for _, row := range dm.MemberRows {
			out = append(out, memberOutput(row))
		}
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("%s (%d %s)", namespace, dm.MemberMatchCount, app.Cfg.Browse.MemberMode))
	if len(dm.MemberRows) == 0 {
		if ns, ok := app.Engine.Catalog().Namespace(namespace); ok && !ns.Loaded {
			r.Muted(fmt.Sprintf("Namespace %s is not loaded. Use --require to load it.", namespace))
		} else {
			r.Muted("No members match.")
		}
		return nil
	}
	r.Table(memberTable(dm.MemberRows))
	return nil
}

func memberOutput(row view.MemberRow) output.MemberOutput {
	kinds := row.Kinds.Slice()
	labels := make([]string, len(kinds))
	for i, k := range kinds {
		labels[i] = k.String()
	}
	return output.MemberOutput{
		Name:          row.Name,
		QualifiedName: row.QualifiedName,
		Kinds:         labels,
		Line:          row.Line,
	}
}

func memberTable(rows []view.MemberRow) ([]string, [][]string) {
	body := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := ""
		if row.Line > 0 {
			line = strconv.Itoa(row.Line)
		}
		body = append(body, []string{row.Name, row.Kinds.String(), line})
	}
	return []string{"Name", "Kinds", "Line"}, body
}
