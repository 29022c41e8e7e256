// Package commands implements the nsbrowse subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/leapstack-labs/nsbrowse/internal/cli/config"
	"github.com/leapstack-labs/nsbrowse/internal/cli/output"
	"github.com/leapstack-labs/nsbrowse/internal/engine"
	"github.com/leapstack-labs/nsbrowse/internal/macro"
	"github.com/leapstack-labs/nsbrowse/internal/resolve"
	"github.com/leapstack-labs/nsbrowse/internal/state"
	"github.com/leapstack-labs/nsbrowse/internal/view"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"github.com/spf13/cobra"
)

// App holds the dependencies shared by commands.
type App struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Macros   *macro.Host
	Store    *state.Store
	Engine   *engine.Engine

	// SessionID groups the history entries of one invocation
	SessionID string
}

// NewApp builds the host, state store and engine from the command's
// config. The returned cleanup must be called (typically via defer).
func NewApp(cmd *cobra.Command) (*App, func(), error) {
	ctx := cmd.Context()
	cfg := config.GetConfig(ctx)
	logger := config.GetLogger(ctx)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	return newApp(ctx, cfg, logger, r, cmd.ErrOrStderr())
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, r *output.Renderer, macroOut io.Writer) (*App, func(), error) {
	host, err := macro.New(macro.Config{
		Dir:      cfg.MacrosDir,
		Threads:  cfg.Macro.Threads,
		MaxSteps: cfg.Macro.MaxSteps,
		Output:   macroOut,
		Logger:   logger.With("component", "macro"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open macros: %w", err)
	}

	store, err := state.Open(ctx, cfg.StatePath, logger.With("component", "state"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state: %w", err)
	}

	app := &App{
		Cfg:       cfg,
		Logger:    logger,
		Renderer:  r,
		Macros:    host,
		Store:     store,
		SessionID: state.NewSessionID(),
	}

	app.Engine = engine.New(engine.Config{
		Host:             state.NewSnapshotHost(host, store, logger.With("component", "snapshot")),
		NamespaceMode:    cfg.Browse.NamespaceMode,
		NamespacePattern: cfg.Browse.NamespacePattern,
		MemberMode:       cfg.Browse.MemberMode,
		MemberPattern:    cfg.Browse.MemberPattern,
		DocFacet:         cfg.Browse.DocFacet,
		FilterCacheSize:  cfg.Filter.CacheSize,
		Resolve: resolve.Config{
			Workers:      cfg.Resolve.Workers,
			Timeout:      cfg.Resolve.Timeout,
			Retries:      uint64(max(cfg.Resolve.Retries, 0)),
			RetryBackoff: cfg.Resolve.RetryBackoff,
			QueueSize:    cfg.Resolve.QueueSize,
		},
		OnView: app.recordView(ctx),
		Logger: logger,
	})

	cleanup := func() {
		app.Engine.Close()
		if err := store.Close(); err != nil {
			logger.Warn("failed to close state", "error", err)
		}
	}
	return app, cleanup, nil
}

func (a *App) recordView(ctx context.Context) engine.ViewFunc {
	return func(m core.Member, facet core.DocFacet, _ string) {
		if _, err := a.Store.RecordView(ctx, a.SessionID, m.QualifiedName(), facet); err != nil {
			a.Logger.Warn("failed to record view", "member", m.QualifiedName(), "error", err)
		}
	}
}

// refresh syncs the catalog, warning instead of failing when a snapshot
// kept it usable.
func (a *App) refresh(ctx context.Context) error {
	err := a.Engine.Refresh(ctx)
	if err == nil {
		return nil
	}
	if len(a.Engine.Catalog().ListNamespaces()) == 0 {
		return err
	}
	a.Renderer.Warning(err.Error())
	return nil
}

// showNamespace makes ns visible and selected regardless of the configured
// namespace filter.
func (a *App) showNamespace(name string) error {
	a.Engine.SetNamespaceFilter(core.NamespacesAll, "")
	if err := a.Engine.SelectNamespace(name); err != nil {
		return fmt.Errorf("namespace %s: %w", name, core.ErrNotFound)
	}
	return nil
}

// require loads a namespace and waits for the result.
func (a *App) require(ctx context.Context, name string) error {
	issued, err := a.Engine.Require(name)
	if err != nil {
		return err
	}
	if !issued {
		return nil
	}
	if err := a.Engine.Drain(ctx); err != nil {
		return err
	}
	if st := a.Engine.RequireStatus(name); st.State == view.StateError {
		return fmt.Errorf("failed to require %s: %s", name, st)
	}
	return nil
}

// memberModeFor returns the first member mode that lists m.
func memberModeFor(m *core.Member) core.MemberMode {
	for _, mode := range core.MemberModes() {
		if mode.Admits(m) {
			return mode
		}
	}
	return core.MembersMap
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
