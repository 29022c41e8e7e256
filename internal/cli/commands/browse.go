package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/nsbrowse/internal/cli/output"
	"github.com/leapstack-labs/nsbrowse/internal/engine"
	"github.com/leapstack-labs/nsbrowse/internal/state"
	"github.com/leapstack-labs/nsbrowse/internal/watch"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const prompt = "nsbrowse> "

// NewBrowseCommand creates the browse command.
func NewBrowseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse namespaces interactively",
		Long: `Start an interactive session over the macros directory.

Select a namespace, pick a member and read its documentation facets.
Commands run against a live catalog: with --watch, edits to the macros
directory are picked up without restarting.

Type help inside the session for the command list.`,
		Example: `  # Browse, reloading on file changes
  nsbrowse browse --watch

  # Start on loaded namespaces showing all definitions
  nsbrowse browse --namespace-mode loaded --member-mode map`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return runBrowse(cmd, app)
		},
	}

	cmd.Flags().String("namespace-mode", "", "Initial namespace mode (loaded|unloaded|all)")
	cmd.Flags().String("namespace-pattern", "", "Initial namespace pattern")
	cmd.Flags().String("member-mode", "", "Initial member mode")
	cmd.Flags().String("member-pattern", "", "Initial member pattern")
	cmd.Flags().String("facet", "", "Initial documentation facet")
	cmd.Flags().Bool("watch", false, "Refresh when files in the macros directory change")
	_ = cmd.RegisterFlagCompletionFunc("namespace-mode", completeLabels(core.NamespaceModes()))
	_ = cmd.RegisterFlagCompletionFunc("member-mode", completeLabels(core.MemberModes()))
	_ = cmd.RegisterFlagCompletionFunc("facet", completeLabels(core.DocFacets()))

	return cmd
}

func runBrowse(cmd *cobra.Command, app *App) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := app.refresh(ctx); err != nil {
		return err
	}

	loop := engine.NewLoop(app.Engine, app.Logger.With("component", "loop"))
	s := newSession(app, loop)

	historyFile := ""
	if app.Store.Path() != state.MemoryPath {
		historyFile = filepath.Join(filepath.Dir(app.Store.Path()), "browse_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    s.completer(ctx),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()
	s.r = output.NewRendererWithTTY(rl.Stdout(), rl.Stderr(), app.Renderer.IsTTY(), app.Renderer.EffectiveMode())

	var w *watch.Watcher
	if app.Cfg.Watch {
		w, err = watch.New(watch.Config{
			Dir:    app.Cfg.MacrosDir,
			Logger: app.Logger.With("component", "watch"),
		})
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(loop.Run(gctx))
	})
	if w != nil {
		g.Go(func() error {
			return ignoreCanceled(w.Run(gctx, func(paths []string) {
				s.reload(gctx, paths)
			}))
		})
	}
	g.Go(func() error {
		defer cancel()
		return s.run(gctx, rl)
	})
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
