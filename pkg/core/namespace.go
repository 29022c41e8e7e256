package core

import "strings"

// Namespace is a named grouping of members in the browsed environment.
// Identity is the Name; the Catalog Store keeps one *Namespace per name for
// the lifetime of the store.
type Namespace struct {
	Name        string
	Loaded      bool
	Stale       bool   // loaded, but the host's source changed since
	MemberCount int    // cached, recomputed whenever the member set changes
	Source      string // opaque location token supplied by the host
}

// DisplayName implements the filter candidate contract.
func (n *Namespace) DisplayName() string { return n.Name }

// Member is a named entity inside a namespace.
type Member struct {
	Namespace string
	Name      string
	Kinds     KindSet
	Line      int // 1-based source line, 0 if unknown
}

// DisplayName implements the filter candidate contract.
func (m *Member) DisplayName() string { return m.Name }

// QualifiedName returns "namespace/name".
func (m *Member) QualifiedName() string {
	return QualifiedName(m.Namespace, m.Name)
}

// Is reports whether the member carries kind k.
func (m *Member) Is(k Kind) bool { return m.Kinds.Has(k) }

// QualifiedName joins a namespace and a member name.
func QualifiedName(namespace, name string) string {
	return namespace + "/" + name
}

// SplitQualifiedName splits "ns/name" at the first slash.
// Member names may themselves contain slashes (e.g. the division operator).
func SplitQualifiedName(qn string) (namespace, name string, ok bool) {
	i := strings.IndexByte(qn, '/')
	if i <= 0 || i == len(qn)-1 {
		return "", "", false
	}
	return qn[:i], qn[i+1:], true
}

// NamespaceInfo is the raw namespace record reported by a Host.
// Stale marks a loaded namespace whose source changed since it was loaded;
// requiring it again reloads it.
type NamespaceInfo struct {
	Name   string
	Loaded bool
	Stale  bool
	Source string
}

// MemberInfo is the raw member record reported by a Host.
type MemberInfo struct {
	Name  string
	Kinds KindSet
	Line  int
}
