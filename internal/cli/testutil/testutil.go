// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/nsbrowse/internal/cli/config"
	"github.com/leapstack-labs/nsbrowse/internal/cli/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixture sources written by SetupTestProject.
const (
	UtilStar = `# Helpers shared by other namespaces.

def helper(x):
    """Doubles x."""
    return x * 2
`

	MainStar = `load("util.star", "helper")

# Greets someone.
def greet(name):
    """Returns a greeting."""
    return "hello " + name

def compute(x):
    return helper(x) + 1

def _hidden():
    pass

limits = {"max": 3}
`

	MainNotes = `examples:
  greet: |
    greet("world")
`
)

// SetupTestProject creates a temporary project with a macros directory
// holding main, util and a namespace that fails to load. It returns the
// project directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	macros := filepath.Join(tmpDir, "macros")
	require.NoError(t, os.MkdirAll(macros, 0o755))

	files := map[string]string{
		"util.star":       UtilStar,
		"main.star":       MainStar,
		"main.notes.yaml": MainNotes,
		"broken.star":     "x = undefined_name\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(macros, name), []byte(content), 0o644))
	}
	return tmpDir
}

// NewTestConfig returns the default config rooted at a project created by
// SetupTestProject, with the state database inside the project.
func NewTestConfig(t *testing.T, projectDir string) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.ProjectRoot = projectDir
	cfg.MacrosDir = filepath.Join(projectDir, "macros")
	cfg.StatePath = filepath.Join(projectDir, config.DefaultStateFile)
	cfg.Resolve.RetryBackoff = 0
	return cfg
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	assert.False(t, ansiPattern.MatchString(s), "string contains ANSI escape codes: %q", s)
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	assert.Zero(t, fenceCount%2, "unbalanced code fences in markdown: found %d occurrences", fenceCount)

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
