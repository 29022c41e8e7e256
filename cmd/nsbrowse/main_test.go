package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/nsbrowse/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeMacros(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "macros")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.star"),
		[]byte("def greet(name):\n    \"\"\"Says hello.\"\"\"\n    return \"hello \" + name\n"), 0o644))
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nsbrowse v")
}

func TestHelpCommand(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"namespaces", "members", "doc", "discover", "browse", "completion"} {
		assert.Contains(t, out, name)
	}
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "nsbrowse")

	_, _, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestNamespacesCommandJSON(t *testing.T) {
	macros := writeMacros(t)
	state := filepath.Join(t.TempDir(), "state.db")

	out, _, err := execute(t, "namespaces", "-o", "json", "--macros-dir", macros, "--state", state)
	require.NoError(t, err)

	var got []struct {
		Name   string `json:"name"`
		Loaded bool   `json:"loaded"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "builtins", got[0].Name)
	assert.Equal(t, "main", got[1].Name)
	assert.FileExists(t, state)
}

func TestDocCommand(t *testing.T) {
	macros := writeMacros(t)

	out, _, err := execute(t, "doc", "main/greet", "-o", "markdown",
		"--macros-dir", macros, "--state", ":memory:")
	require.NoError(t, err)
	assert.Contains(t, out, "greet(name)\n\nSays hello.")

	out, _, err = execute(t, "doc", "main/greet", "--facet", "source", "-o", "markdown",
		"--macros-dir", macros, "--state", ":memory:")
	require.NoError(t, err)
	assert.Contains(t, out, "```python\ndef greet(name):")
}

func TestInvalidFlagValue(t *testing.T) {
	macros := writeMacros(t)

	_, _, err := execute(t, "members", "main", "--member-mode", "everything",
		"--macros-dir", macros, "--state", ":memory:")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown member mode "everything"`)
}
