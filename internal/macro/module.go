package macro

import (
	"sort"
	"strings"

	starctx "github.com/leapstack-labs/nsbrowse/internal/starlark"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"go.starlark.net/starlark"
)

// module is an executed namespace.
type module struct {
	name    string
	path    string
	src     sourceFile // file stamps at execution time
	parsed  *parsedFile
	notes   *notes
	globals starlark.StringDict
	members []core.MemberInfo
}

func newModule(src sourceFile, parsed *parsedFile, n *notes, globals starlark.StringDict) *module {
	m := &module{
		name:    src.Namespace,
		path:    src.Path,
		src:     src,
		parsed:  parsed,
		notes:   n,
		globals: globals,
	}
	m.members = m.classify()
	return m
}

// changed reports whether the namespace file or its notes sidecar differ
// from the ones m was executed from.
func (m *module) changed(f sourceFile) bool {
	return !m.src.ModTime.Equal(f.ModTime) || !m.src.NotesModTime.Equal(f.NotesModTime)
}

// classify derives the member list of an executed namespace: its globals,
// its load bindings and the modules it loads.
func (m *module) classify() []core.MemberInfo {
	var out []core.MemberInfo

	for _, name := range m.globals.Keys() {
		kinds := core.Kinds(core.KindIntern)
		if strings.HasPrefix(name, "_") {
			kinds = kinds.With(core.KindPrivate)
		} else {
			kinds = kinds.With(core.KindPublic)
		}

		v := m.globals[name]
		switch {
		case starctx.IsDispatchTable(v):
			kinds = kinds.With(core.KindMultimethod)
		case starctx.IsRecord(v):
			kinds = kinds.With(core.KindRecord)
		}

		line := 0
		if d, ok := m.parsed.Defs[name]; ok {
			line = d.Line
		}
		out = append(out, core.MemberInfo{
			Name:  name,
			Kinds: kinds | m.notes.extraKinds(name),
			Line:  line,
		})
	}

	for _, d := range m.parsed.Defs {
		if d.Kind != defLoad {
			continue
		}
		kinds := core.Kinds(core.KindRefer)
		if d.Name != d.Original {
			kinds = kinds.With(core.KindAlias)
		}
		out = append(out, core.MemberInfo{Name: d.Name, Kinds: kinds | m.notes.extraKinds(d.Name), Line: d.Line})
	}

	for _, mod := range m.parsed.Modules {
		out = append(out, core.MemberInfo{Name: mod, Kinds: core.Kinds(core.KindImport), Line: m.loadLine(mod)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *module) loadLine(module string) int {
	line := 0
	for _, d := range m.parsed.Defs {
		if d.Kind == defLoad && d.Module == module && (line == 0 || d.Line < line) {
			line = d.Line
		}
	}
	return line
}

// isImport reports whether name is a module this namespace loads.
func (m *module) isImport(name string) bool {
	for _, mod := range m.parsed.Modules {
		if mod == name {
			return true
		}
	}
	return false
}
