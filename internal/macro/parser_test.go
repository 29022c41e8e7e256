package macro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	src := `load("util.star", "a", b = "c")
load(":util.star", "d")

# Builds a thing.
# Second line.
def build(name, size = 10, *args, mode = "fast", **kwargs):
    """
    Builds a thing named name.
    """
    x = helper(name)
    return wrap(helper(x), other())

def _keyword_only(a, *, b = None, c = -1):
    pass

x, (y, z) = 1, (2, 3)
x = 4
`
	pf, err := parseFile(fileOptions, "things.star", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []string{"util.star", ":util.star"}, pf.Modules)

	build := pf.Defs["build"]
	require.NotNil(t, build)
	assert.Equal(t, defFunction, build.Kind)
	assert.Equal(t, `build(name, size=10, *args, mode="fast", **kwargs)`, build.Signature())
	assert.Equal(t, "Builds a thing named name.", build.Docstring)
	assert.Equal(t, []string{"Builds a thing.", "Second line."}, build.Comments)
	assert.Equal(t, []string{"helper", "wrap", "other"}, build.Calls)
	assert.Equal(t, 6, build.Line)
	assert.Equal(t, 11, build.EndLine)

	kw := pf.Defs["_keyword_only"]
	require.NotNil(t, kw)
	assert.Equal(t, "_keyword_only(a, *, b=None, c=-1)", kw.Signature())
	assert.Empty(t, kw.Docstring)

	b := pf.Defs["b"]
	require.NotNil(t, b)
	assert.Equal(t, defLoad, b.Kind)
	assert.Equal(t, "util.star", b.Module)
	assert.Equal(t, "c", b.Original)
	assert.Equal(t, "b", b.Signature())

	assert.Equal(t, ":util.star", pf.Defs["d"].Module)

	for _, name := range []string{"x", "y", "z"} {
		require.Contains(t, pf.Defs, name)
		assert.Equal(t, defAssign, pf.Defs[name].Kind)
		assert.Equal(t, 16, pf.Defs[name].Line, "first binding wins")
	}
}

func TestParseFile_SyntaxError(t *testing.T) {
	_, err := parseFile(fileOptions, "bad.star", []byte("def broken(:\n"))

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "bad.star", loadErr.File)
}

func TestParsedFile_Source(t *testing.T) {
	pf := &parsedFile{Lines: []string{"one", "two", "three"}}

	tests := []struct {
		from, to int
		want     string
	}{
		{1, 1, "one"},
		{2, 3, "two\nthree"},
		{2, 99, "two\nthree"},
		{3, 1, "three"},
		{0, 2, ""},
		{4, 4, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pf.Source(tt.from, tt.to), "%d-%d", tt.from, tt.to)
	}
}

func TestModuleName(t *testing.T) {
	for _, in := range []string{"util", "util.star", ":util.star", "./util.star"} {
		got, err := moduleName(in)
		require.NoError(t, err, in)
		assert.Equal(t, "util", got, in)
	}

	for _, in := range []string{"", "../util.star", "@repo//util.star", "sub/util.star"} {
		_, err := moduleName(in)
		assert.Error(t, err, in)
	}
}

func TestValidateNamespace(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"util", false},
		{"_private", false},
		{"v2_helpers", false},
		{"", true},
		{"2fast", true},
		{"with-dash", true},
		{"dotted.name", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNamespace(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
