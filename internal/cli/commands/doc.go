package commands

import (
	"fmt"

	"github.com/leapstack-labs/nsbrowse/internal/cli/output"
	"github.com/leapstack-labs/nsbrowse/internal/view"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"github.com/spf13/cobra"
)

// NewDocCommand creates the doc command.
func NewDocCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc <namespace/name>",
		Short: "Show documentation for a member",
		Long: `Show one documentation facet of a member. The member's namespace is
loaded first when needed.

Facets: Doc, Source, Examples, Comments, See-alsos, Value.`,
		Example: `  # Signature and docstring
  nsbrowse doc main/greet

  # Source of a definition
  nsbrowse doc main/greet --facet source

  # Current value of a global, as JSON
  nsbrowse doc main/config --facet value -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return runDoc(cmd, app, args[0])
		},
	}

	cmd.Flags().String("facet", "", "Documentation facet (doc|source|examples|comments|see-alsos|value)")
	_ = cmd.RegisterFlagCompletionFunc("facet", completeLabels(core.DocFacets()))

	return cmd
}

func runDoc(cmd *cobra.Command, app *App, qualifiedName string) error {
	ctx := cmd.Context()

	namespace, _, ok := core.SplitQualifiedName(qualifiedName)
	if !ok {
		return fmt.Errorf("expected namespace/name, got %q", qualifiedName)
	}
	if err := app.refresh(ctx); err != nil {
		return err
	}
	if err := app.showNamespace(namespace); err != nil {
		return err
	}
	if err := app.require(ctx, namespace); err != nil {
		return err
	}

	m, ok := app.Engine.Catalog().Member(qualifiedName)
	if !ok {
		return fmt.Errorf("member %s: %w", qualifiedName, core.ErrNotFound)
	}
	app.Engine.SetMemberFilter(memberModeFor(m), "")
	app.Engine.SetDocFacet(app.Cfg.Browse.DocFacet)
	if err := app.Engine.SelectMember(qualifiedName); err != nil {
		return err
	}
	if err := app.Engine.Drain(ctx); err != nil {
		return err
	}

	dm := app.Engine.Display()
	if dm.DocStatus.State == view.StateError {
		return fmt.Errorf("%s of %s: %s", dm.DocFacet, qualifiedName, dm.DocStatus.Err)
	}
	renderDoc(app.Renderer, dm)
	return nil
}

func renderDoc(r *output.Renderer, dm view.DisplayModel) {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		_ = r.JSON(output.DocOutput{
			QualifiedName: dm.SelectedMember,
			Facet:         dm.DocFacet.String(),
			Status:        dm.DocStatus.String(),
			Text:          dm.DocText,
		})
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, dm.SelectedMember))
		r.Println(output.FormatKeyValue("Facet", dm.DocFacet.String()))
		r.Println("")
		if dm.DocFacet == core.FacetSource {
			r.Println(output.FormatCodeBlock("python", dm.DocText))
		} else {
			r.Println(dm.DocText)
		}
	default:
		r.Header(1, dm.SelectedMember)
		r.Muted(dm.DocFacet.String())
		r.Println("")
		if dm.DocText == "" {
			r.Muted("(empty)")
			return
		}
		r.Println(dm.DocText)
	}
}
