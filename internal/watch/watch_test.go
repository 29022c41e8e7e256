package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/nsbrowse/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string) <-chan []string {
	t.Helper()
	w, err := New(Config{Dir: dir, Debounce: 200 * time.Millisecond, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan []string, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(paths []string) { changes <- paths })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return changes
}

func nextChange(t *testing.T, changes <-chan []string) []string {
	t.Helper()
	select {
	case paths := <-changes:
		return paths
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
		return nil
	}
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir)

	for _, name := range []string{"b.star", "a.star", "a.notes.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x = 1\n"), 0o644))
	}

	paths := nextChange(t, changes)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.notes.yaml"),
		filepath.Join(dir, "a.star"),
		filepath.Join(dir, "b.star"),
	}, paths)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.star"), []byte("x = 1\n"), 0o644))

	assert.Equal(t, []string{filepath.Join(dir, "util.star")}, nextChange(t, changes))
}

func TestWatcher_ReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.star")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))
	changes := startWatcher(t, dir)

	require.NoError(t, os.Remove(path))

	assert.Equal(t, []string{path}, nextChange(t, changes))
}

func TestNew_MissingDir(t *testing.T) {
	_, err := New(Config{Dir: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}
