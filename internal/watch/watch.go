// Package watch reports changes to the files of a macros directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before changes
// are reported.
const DefaultDebounce = 100 * time.Millisecond

// DefaultExtensions are the file extensions a macros directory is made of.
var DefaultExtensions = []string{".star", ".yaml"}

// Config holds watcher configuration.
type Config struct {
	Dir        string
	Debounce   time.Duration
	Extensions []string
	Logger     *slog.Logger
}

// Watcher watches one directory.
type Watcher struct {
	dir      string
	debounce time.Duration
	exts     []string
	logger   *slog.Logger
	fs       *fsnotify.Watcher
}

// New starts watching cfg.Dir. Events that happen after New returns are
// reported by Run.
func New(cfg Config) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(cfg.Dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.Dir, err)
	}

	return &Watcher{
		dir:      cfg.Dir,
		debounce: cfg.Debounce,
		exts:     cfg.Extensions,
		logger:   cfg.Logger,
		fs:       fw,
	}, nil
}

// Run calls onChange with the sorted paths that changed during each burst
// of events. It returns when ctx is done and closes the watcher.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	defer func() { _ = w.fs.Close() }()

	var timer *time.Timer
	var fire <-chan time.Time
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)

			w.logger.Debug("change detected", "dir", w.dir, "files", len(paths))
			onChange(paths)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return slices.Contains(w.exts, filepath.Ext(event.Name))
}
