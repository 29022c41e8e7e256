package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leapstack-labs/nsbrowse/internal/notifier"
	"github.com/leapstack-labs/nsbrowse/internal/view"
)

// ErrLoopClosed is returned by Do after the loop has stopped.
var ErrLoopClosed = errors.New("engine loop closed")

// Loop owns an Engine on a dedicated goroutine. Commands from any goroutine
// are queued as funcs and run in order; completions are applied as they
// arrive. After every state change the current display model is published.
type Loop struct {
	engine   *Engine
	updates  *notifier.Notifier[view.DisplayModel]
	commands chan func(*Engine)
	done     chan struct{}
	logger   *slog.Logger
}

// NewLoop wraps e. The loop takes ownership of e; call Run to start it.
func NewLoop(e *Engine, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		engine:   e,
		updates:  notifier.New[view.DisplayModel](),
		commands: make(chan func(*Engine)),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Run processes commands and completions until ctx is cancelled, then closes
// the engine.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer l.updates.Close()
	defer l.engine.Close()

	l.logger.Debug("engine loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("engine loop stopped")
			return ctx.Err()
		case fn := <-l.commands:
			fn(l.engine)
			l.publish()
		case c := <-l.engine.Completions():
			if l.engine.Apply(ctx, c) {
				l.publish()
			}
		}
	}
}

// Do runs fn on the loop goroutine and returns its error.
func (l *Loop) Do(ctx context.Context, fn func(*Engine) error) error {
	result := make(chan error, 1)
	cmd := func(e *Engine) { result <- fn(e) }

	select {
	case l.commands <- cmd:
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Display returns the current display model.
func (l *Loop) Display(ctx context.Context) (view.DisplayModel, error) {
	var dm view.DisplayModel
	err := l.Do(ctx, func(e *Engine) error {
		dm = e.Display()
		return nil
	})
	return dm, err
}

// Subscribe returns a channel of display models published after each state
// change, and a function to stop receiving them.
func (l *Loop) Subscribe() (<-chan view.DisplayModel, func()) {
	return l.updates.Subscribe()
}

func (l *Loop) publish() {
	if l.updates.Len() == 0 {
		return
	}
	l.updates.Publish(l.engine.Display())
}
