package core

import "context"

// Host supplies raw catalog and resolution data from the browsed
// environment. Listing calls are expected to be cheap and are made on the
// owner goroutine and must not execute namespace code; RequireNamespace and
// FetchDoc may block and are only ever called from resolution workers.
// RequireNamespace on a stale namespace reloads it; a failed reload leaves
// the namespace loaded with its previous contents.
//
// Hosts report failures by wrapping ErrNotFound or ErrLoadError; any other
// error is treated as ErrHostUnavailable.
type Host interface {
	ListNamespaces(ctx context.Context) ([]NamespaceInfo, error)
	ListMembers(ctx context.Context, namespace string) ([]MemberInfo, error)
	RequireNamespace(ctx context.Context, namespace string) error
	FetchDoc(ctx context.Context, member Member, facet DocFacet) (string, error)
}

// Tracer is an optional Host capability that toggles call tracing on a
// member. It returns the tracing state after the toggle.
type Tracer interface {
	ToggleTrace(ctx context.Context, member Member) (bool, error)
}

// Traceable reports whether a member is something a Tracer can instrument.
func Traceable(m *Member) bool {
	if m == nil {
		return false
	}
	if m.Is(KindSpecialForm) || m.Is(KindImport) || m.Is(KindRecord) {
		return false
	}
	return m.Is(KindPublic) || m.Is(KindPrivate) || m.Is(KindMacro) ||
		m.Is(KindMultimethod) || m.Is(KindTraced)
}
