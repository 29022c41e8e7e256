package starlark

import (
	"maps"
	"slices"

	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// keywords are the Starlark reserved words that introduce syntax rather
// than name values.
var keywords = []string{
	"and", "break", "continue", "def", "elif", "else", "for", "if", "in",
	"lambda", "load", "not", "or", "pass", "return", "while",
}

// Predeclared returns the globals every namespace is executed with, on top
// of the Starlark universe. The result is a fresh dict the caller may modify.
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"json":   starjson.Module,
		"math":   starmath.Module,
		"time":   startime.Module,
	}
}

// Universe returns the names and values of the built-in universe plus the
// predeclared globals.
func Universe() starlark.StringDict {
	out := Predeclared()
	maps.Copy(out, starlark.Universe)
	return out
}

// Keywords returns the reserved words in sorted order.
func Keywords() []string {
	return slices.Clone(keywords)
}
