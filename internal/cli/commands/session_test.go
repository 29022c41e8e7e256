package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	clitest "github.com/leapstack-labs/nsbrowse/internal/cli/testutil"
	"github.com/leapstack-labs/nsbrowse/internal/engine"
	"github.com/leapstack-labs/nsbrowse/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSession struct {
	*session
	tr     *clitest.TestRenderer
	copied []string
}

func newTestSession(t *testing.T) *testSession {
	t.Helper()

	tr := clitest.NewTestRendererMarkdown()
	app := newTestApp(t, tr)
	require.NoError(t, app.refresh(context.Background()))

	loop := engine.NewLoop(app.Engine, testutil.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ts := &testSession{session: newSession(app, loop), tr: tr}
	ts.copyText = func(text string) error {
		ts.copied = append(ts.copied, text)
		return nil
	}
	ts.pasteText = func() (string, error) {
		return "main/compute", nil
	}
	return ts
}

// run executes lines in order, failing on the first error, and returns the
// output of the last one.
func (ts *testSession) run(t *testing.T, lines ...string) string {
	t.Helper()
	for _, line := range lines {
		ts.tr.Reset()
		quit, err := ts.exec(context.Background(), line)
		require.NoError(t, err, line)
		require.False(t, quit, line)
	}
	return ts.tr.Output()
}

func TestSession_SelectRequireAndRead(t *testing.T) {
	ts := newTestSession(t)

	out := ts.run(t, "ns main")
	assert.Contains(t, out, "main is not loaded")

	out = ts.run(t, "require")
	assert.Contains(t, out, "✓ loaded main")
	assert.Contains(t, out, "| greet |")
	assert.NotContains(t, out, "_hidden")

	out = ts.run(t, "member greet")
	assert.Contains(t, out, "greet(name)\n\nReturns a greeting.")

	out = ts.run(t, "facet examples")
	assert.Contains(t, out, `greet("world")`)

	out = ts.run(t, "members")
	assert.Contains(t, out, "| * | greet |")
}

func TestSession_Filters(t *testing.T) {
	ts := newTestSession(t)
	ts.run(t, "ns main", "require")

	out := ts.run(t, "filter gre")
	assert.Contains(t, out, `matching "gre"`)
	assert.Contains(t, out, "| greet |")
	assert.NotContains(t, out, "| compute |")

	out = ts.run(t, "filter", "mode privates")
	assert.Contains(t, out, "| _hidden |")
	assert.NotContains(t, out, "| greet |")

	out = ts.run(t, "filter (")
	assert.Contains(t, ts.tr.ErrorOutput(), `invalid member pattern "("`)
	assert.NotContains(t, out, "| _hidden |")

	out = ts.run(t, "nsfilter ^u")
	assert.Contains(t, out, "| util |")
	assert.NotContains(t, out, "| main |")

	out = ts.run(t, "nsfilter", "nsmode loaded")
	assert.Contains(t, out, "| main |")
	assert.Contains(t, out, "| builtins |")
	assert.NotContains(t, out, "| broken |")
}

func TestSession_CopyPasteWhere(t *testing.T) {
	ts := newTestSession(t)
	ts.run(t, "ns main", "require", "m greet")

	out := ts.run(t, "copy")
	assert.Contains(t, out, "main/greet")
	assert.Contains(t, out, "copied to clipboard")
	assert.Equal(t, []string{"main/greet"}, ts.copied)

	out = ts.run(t, "where")
	assert.Contains(t, out, "main.star:")

	out = ts.run(t, "paste")
	assert.Contains(t, out, "compute(x)")

	out = ts.run(t, "paste main/greet")
	assert.Contains(t, out, "Returns a greeting.")
}

func TestSession_CopyWithoutClipboard(t *testing.T) {
	ts := newTestSession(t)
	ts.copyText = func(string) error { return errors.New("clipboard not available") }
	ts.run(t, "ns main", "require", "m greet")

	out := ts.run(t, "copy")
	assert.Contains(t, out, "main/greet")
	assert.Contains(t, out, "(clipboard not available)")
}

func TestSession_TraceAndEval(t *testing.T) {
	ts := newTestSession(t)
	ts.run(t, "ns main", "require")

	out := ts.run(t, "trace compute")
	assert.Contains(t, out, "tracing main/compute")

	out = ts.run(t, "mode traced")
	assert.Contains(t, out, "| compute |")

	out = ts.run(t, "eval compute(2)")
	assert.Contains(t, out, "5")

	out = ts.run(t, "eval greet('bob')")
	assert.Contains(t, out, "hello bob")

	out = ts.run(t, "trace main/compute")
	assert.Contains(t, out, "stopped tracing main/compute")
}

func TestSession_History(t *testing.T) {
	ts := newTestSession(t)

	out := ts.run(t, "history")
	assert.Contains(t, out, "No history yet.")

	ts.run(t, "ns main", "require", "m greet", "m compute")
	out = ts.run(t, "history 1")
	assert.Contains(t, out, "| main/compute | Doc |")
	assert.NotContains(t, out, "main/greet")
}

func TestSession_Errors(t *testing.T) {
	ts := newTestSession(t)
	ctx := context.Background()

	tests := []struct {
		line    string
		wantErr string
	}{
		{"bogus", `unknown command "bogus"`},
		{"nsmode", `unknown namespace mode ""`},
		{"mode everything", `unknown member mode "everything"`},
		{"facet nope", `unknown facet "nope"`},
		{"ns", "usage: ns"},
		{"ns gamma", "stale selection"},
		{"member greet", "no namespace selected"},
		{"require", "usage: require"},
		{"require broken", "failed to require broken"},
		{"copy", "no member selected"},
		{"paste nope", "not a qualified name"},
		{"history x", `invalid history limit "x"`},
		{"eval", "usage: eval"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := ts.exec(ctx, tt.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSession_RequireFailureShownInList(t *testing.T) {
	ts := newTestSession(t)

	_, err := ts.exec(context.Background(), "require broken")
	require.Error(t, err)

	out := ts.run(t, "ls")
	assert.Contains(t, out, "| Name | Loaded | Members | Status |")
	assert.Contains(t, out, "| broken | no | 0 | error(LoadError) |")
}

func TestSession_RefreshReloadsChangedFile(t *testing.T) {
	ts := newTestSession(t)
	ts.run(t, "ns main", "require")

	path := filepath.Join(ts.app.Cfg.MacrosDir, "main.star")
	require.NoError(t, os.WriteFile(path, []byte(clitest.MainStar+"\ndef added():\n    pass\n"), 0o644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	ts.run(t, "refresh")
	require.NoError(t, ts.settle(context.Background()))

	out := ts.run(t, "members")
	assert.Contains(t, out, "| added |")
	assert.Contains(t, out, "| greet |")

	out = ts.run(t, "ls")
	assert.Contains(t, out, "| * | main | yes |")
	assert.NotContains(t, out, "changed")
}

func TestSession_Quit(t *testing.T) {
	ts := newTestSession(t)
	for _, line := range []string{"quit", "exit", "  QUIT  "} {
		quit, err := ts.exec(context.Background(), line)
		require.NoError(t, err)
		assert.True(t, quit, line)
	}
}

func TestSession_Help(t *testing.T) {
	ts := newTestSession(t)
	out := ts.run(t, "help")
	assert.Contains(t, out, "require [namespace]")
	assert.Contains(t, out, "paste [ns/name]")
}
