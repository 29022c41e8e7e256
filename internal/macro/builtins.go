package macro

import (
	"sort"

	starctx "github.com/leapstack-labs/nsbrowse/internal/starlark"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"go.starlark.net/starlark"
)

// builtinModule describes the Starlark universe as a namespace.
type builtinModule struct {
	values   starlark.StringDict
	keywords map[string]bool
	notes    *notes
	members  []core.MemberInfo
}

func newBuiltinModule() (*builtinModule, error) {
	n, err := parseNotes(builtinsNotes)
	if err != nil {
		return nil, err
	}

	b := &builtinModule{
		values:   starctx.Universe(),
		keywords: make(map[string]bool),
		notes:    n,
	}
	for name := range b.values {
		b.members = append(b.members, core.MemberInfo{Name: name, Kinds: core.Kinds(core.KindPublic)})
	}
	for _, kw := range starctx.Keywords() {
		b.keywords[kw] = true
		b.members = append(b.members, core.MemberInfo{Name: kw, Kinds: core.Kinds(core.KindSpecialForm)})
	}
	sort.Slice(b.members, func(i, j int) bool { return b.members[i].Name < b.members[j].Name })
	return b, nil
}

func (b *builtinModule) has(name string) bool {
	_, ok := b.values[name]
	return ok || b.keywords[name]
}
