package commands

import (
	"fmt"

	"github.com/leapstack-labs/nsbrowse/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewDiscoverCommand creates the discover command.
func NewDiscoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Load every namespace and save the catalog snapshot",
		Long: `Load every namespace of the macros directory and record the resulting
catalog in the state database.

The snapshot keeps namespaces and members listable when the macros
directory later becomes unreadable. Namespaces that fail to load are
reported and skipped.`,
		Example: `  # Discover and summarize
  nsbrowse discover

  # Machine-readable result
  nsbrowse discover -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return runDiscover(cmd, app)
		},
	}
}

func runDiscover(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()
	if err := app.refresh(ctx); err != nil {
		return err
	}

	cat := app.Engine.Catalog()
	names := make([]string, 0)
	for _, ns := range cat.ListNamespaces() {
		names = append(names, ns.Name)
	}

	result := output.DiscoverOutput{
		Namespaces: make([]output.DiscoverNamespace, 0, len(names)),
		Summary:    output.DiscoverSummary{StatePath: app.Store.Path()},
	}
	for _, name := range names {
		entry := output.DiscoverNamespace{Name: name, Members: []string{}}
		if err := app.require(ctx, name); err != nil {
			app.Logger.Warn("namespace failed to load", "namespace", name, "error", err)
			entry.Error = err.Error()
			result.Summary.Failed++
		}
		if ns, ok := cat.Namespace(name); ok {
			entry.Source = ns.Source
			entry.Loaded = ns.Loaded
		}
		for _, m := range cat.MembersOf(name) {
			entry.Members = append(entry.Members, m.Name)
		}
		result.Summary.TotalMembers += len(entry.Members)
		result.Namespaces = append(result.Namespaces, entry)
	}
	result.Summary.TotalNamespaces = len(result.Namespaces)

	// Record the final load states in the snapshot.
	if err := app.refresh(ctx); err != nil {
		return err
	}

	app.Logger.Info("discovery finished",
		"namespaces", result.Summary.TotalNamespaces,
		"members", result.Summary.TotalMembers,
		"failed", result.Summary.Failed)

	r := app.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(result)
	}

	r.Header(1, "Discovery")
	header := []string{"Namespace", "Loaded", "Members", "Error"}
	rows := make([][]string, 0, len(result.Namespaces))
	for _, ns := range result.Namespaces {
		rows = append(rows, []string{ns.Name, yesNo(ns.Loaded), fmt.Sprint(len(ns.Members)), ns.Error})
	}
	r.Table(header, rows)
	r.Println("")

	summary := fmt.Sprintf("%d namespaces, %d members saved to %s",
		result.Summary.TotalNamespaces, result.Summary.TotalMembers, result.Summary.StatePath)
	if result.Summary.Failed > 0 {
		r.Warning(fmt.Sprintf("%d namespaces failed to load", result.Summary.Failed))
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(summary)
	} else {
		r.Success(summary)
	}
	return nil
}
