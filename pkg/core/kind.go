package core

import "strings"

// =============================================================================
// Kind
// =============================================================================

// Kind classifies a member. The set is closed; filter dispatch over it is
// exhaustive.
type Kind uint8

// Member kinds.
const (
	KindPublic Kind = iota
	KindPrivate
	KindMacro
	KindSpecialForm
	KindIntern
	KindRefer
	KindImport
	KindAlias
	KindRecord
	KindMultimethod
	KindTraced

	numKinds
)

var kindNames = [...]string{
	KindPublic:      "public",
	KindPrivate:     "private",
	KindMacro:       "macro",
	KindSpecialForm: "special-form",
	KindIntern:      "intern",
	KindRefer:       "refer",
	KindImport:      "import",
	KindAlias:       "alias",
	KindRecord:      "record",
	KindMultimethod: "multimethod",
	KindTraced:      "traced",
}

// String returns the label of the kind.
func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind converts a label to a Kind.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k := Kind(0); k < numKinds; k++ {
		if kindNames[k] == s {
			return k, true
		}
	}
	return 0, false
}

// AllKinds returns every kind in declaration order.
func AllKinds() []Kind {
	kinds := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// =============================================================================
// KindSet
// =============================================================================

// KindSet is a bitset of kinds. A member may belong to several buckets.
type KindSet uint16

// Kinds builds a set from the given kinds.
func Kinds(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s = s.With(k)
	}
	return s
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool { return s&(1<<k) != 0 }

// With returns the set plus k.
func (s KindSet) With(k Kind) KindSet { return s | 1<<k }

// Without returns the set minus k.
func (s KindSet) Without(k Kind) KindSet { return s &^ (1 << k) }

// Slice returns the kinds in declaration order.
func (s KindSet) Slice() []Kind {
	var out []Kind
	for k := Kind(0); k < numKinds; k++ {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// String renders the set as a comma separated list.
func (s KindSet) String() string {
	kinds := s.Slice()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ",")
}

// ParseKindSet parses a comma separated list produced by String.
// Unknown labels are skipped.
func ParseKindSet(s string) KindSet {
	var set KindSet
	for _, part := range strings.Split(s, ",") {
		if k, ok := ParseKind(part); ok {
			set = set.With(k)
		}
	}
	return set
}
