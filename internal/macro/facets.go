package macro

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	starctx "github.com/leapstack-labs/nsbrowse/internal/starlark"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"gopkg.in/yaml.v3"
)

// FetchDoc implements core.Host. A facet with nothing to show is
// core.ErrNotFound.
func (h *Host) FetchDoc(ctx context.Context, member core.Member, facet core.DocFacet) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var text string
	if member.Namespace == BuiltinsNamespace {
		text = h.builtinFacet(member.Name, facet)
	} else if m := h.current(member.Namespace); m != nil {
		text = h.moduleFacet(m, member.Name, facet)
	}

	if text == "" {
		return "", fmt.Errorf("%s %s: %w", member.QualifiedName(), facet, core.ErrNotFound)
	}
	return text, nil
}

func (h *Host) builtinFacet(name string, facet core.DocFacet) string {
	b := h.builtins
	if !b.has(name) {
		return ""
	}

	switch facet {
	case core.FacetDoc:
		if doc := b.notes.Doc[name]; doc != "" {
			return doc
		}
		if b.keywords[name] {
			return name + ": keyword"
		}
		return name + ": built-in " + b.values[name].Type()
	case core.FacetExamples:
		return strings.TrimRight(b.notes.Examples[name], "\n")
	case core.FacetSeeAlsos:
		return strings.Join(b.notes.SeeAlso[name], "\n")
	case core.FacetValue:
		if v, ok := b.values[name]; ok {
			return v.String()
		}
		return ""
	case core.FacetSource, core.FacetComments:
		return ""
	default:
		return ""
	}
}

func (h *Host) moduleFacet(m *module, name string, facet core.DocFacet) string {
	if m.isImport(name) {
		return h.importFacet(m, name, facet)
	}
	d, ok := m.parsed.Defs[name]
	if !ok {
		return ""
	}

	switch facet {
	case core.FacetDoc:
		return h.docFacet(m, d)
	case core.FacetSource:
		return m.parsed.Source(d.Line, d.EndLine)
	case core.FacetExamples:
		return strings.TrimRight(m.notes.Examples[name], "\n")
	case core.FacetComments:
		return strings.Join(d.Comments, "\n")
	case core.FacetSeeAlsos:
		return strings.Join(seeAlsos(m, d), "\n")
	case core.FacetValue:
		if d.Kind == defLoad {
			dep := h.loadedModule(d.Module)
			if dep == nil {
				return ""
			}
			return renderValue(dep.globals[d.Original])
		}
		return renderValue(m.globals[name])
	default:
		return ""
	}
}

func (h *Host) docFacet(m *module, d *definition) string {
	var parts []string
	switch d.Kind {
	case defFunction:
		parts = append(parts, d.Signature())
		if d.Docstring != "" {
			parts = append(parts, d.Docstring)
		}
	case defAssign:
		if v, ok := m.globals[d.Name]; ok {
			parts = append(parts, d.Name+": "+v.Type())
		} else {
			parts = append(parts, d.Name)
		}
	case defLoad:
		parts = append(parts, fmt.Sprintf("%s: loaded from %s as %q", d.Name, d.Module, d.Original))
		if dep := h.loadedModule(d.Module); dep != nil {
			if orig, ok := dep.parsed.Defs[d.Original]; ok && orig.Kind != defLoad {
				parts = append(parts, h.docFacet(dep, orig))
			}
		}
	}
	if extra := m.notes.Doc[d.Name]; extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, "\n\n")
}

func (h *Host) importFacet(m *module, name string, facet core.DocFacet) string {
	switch facet {
	case core.FacetDoc:
		doc := "module " + name
		if dep := h.loadedModule(name); dep != nil {
			doc += "\n\nexports: " + strings.Join(dep.globals.Keys(), ", ")
		}
		return doc
	case core.FacetSource:
		for _, d := range sortedDefs(m) {
			if d.Kind == defLoad && d.Module == name {
				return m.parsed.Source(d.Line, d.EndLine)
			}
		}
		return ""
	case core.FacetExamples:
		return strings.TrimRight(m.notes.Examples[name], "\n")
	case core.FacetSeeAlsos:
		return strings.Join(m.notes.SeeAlso[name], "\n")
	default:
		return ""
	}
}

func (h *Host) loadedModule(module string) *module {
	name, err := moduleName(module)
	if err != nil {
		return nil
	}
	return h.current(name)
}

// seeAlsos lists the notes' links followed by the names of this namespace
// that the definition calls.
func seeAlsos(m *module, d *definition) []string {
	out := slices.Clone(m.notes.SeeAlso[d.Name])
	for _, call := range d.Calls {
		if call == d.Name || slices.Contains(out, call) {
			continue
		}
		if _, ok := m.parsed.Defs[call]; ok {
			out = append(out, call)
		}
	}
	return out
}

func sortedDefs(m *module) []*definition {
	defs := make([]*definition, 0, len(m.parsed.Defs))
	for _, d := range m.parsed.Defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Line < defs[j].Line })
	return defs
}

// renderValue shows data values as YAML and everything else by its
// Starlark string form.
func renderValue(v starlark.Value) string {
	if v == nil {
		return ""
	}
	switch v.(type) {
	case *starlark.Dict, *starlark.List, starlark.Tuple, *starlarkstruct.Struct:
		if !starctx.IsDispatchTable(v) {
			g, err := starctx.ToGo(v)
			if err == nil {
				if out, err := yaml.Marshal(g); err == nil {
					return strings.TrimRight(string(out), "\n")
				}
			}
		}
	}
	return v.String()
}
