package core

import "strings"

// =============================================================================
// NamespaceMode
// =============================================================================

// NamespaceMode selects which namespaces the namespace list shows.
type NamespaceMode int

// Namespace list modes.
const (
	NamespacesLoaded NamespaceMode = iota
	NamespacesUnloaded
	NamespacesAll
)

// String returns the label of the mode.
func (m NamespaceMode) String() string {
	switch m {
	case NamespacesLoaded:
		return "loaded"
	case NamespacesUnloaded:
		return "unloaded"
	case NamespacesAll:
		return "all"
	default:
		return "unknown"
	}
}

// Admits reports whether ns belongs to the mode's bucket.
func (m NamespaceMode) Admits(ns *Namespace) bool {
	switch m {
	case NamespacesLoaded:
		return ns.Loaded
	case NamespacesUnloaded:
		return !ns.Loaded
	case NamespacesAll:
		return true
	default:
		return false
	}
}

// ParseNamespaceMode converts a label to a NamespaceMode.
func ParseNamespaceMode(s string) (NamespaceMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "loaded":
		return NamespacesLoaded, true
	case "unloaded":
		return NamespacesUnloaded, true
	case "all", "":
		return NamespacesAll, true
	default:
		return NamespacesAll, false
	}
}

// NamespaceModes returns every namespace mode.
func NamespaceModes() []NamespaceMode {
	return []NamespaceMode{NamespacesLoaded, NamespacesUnloaded, NamespacesAll}
}

// =============================================================================
// MemberMode
// =============================================================================

// MemberMode selects which members of the selected namespace are listed.
type MemberMode int

// Member list modes.
const (
	MembersPublics MemberMode = iota
	MembersPrivates
	MembersInterns
	MembersInternsMacro
	MembersRefers
	MembersImports
	MembersAliases
	MembersMap
	MembersSpecialForms
	MembersRecords
	MembersMultimethods
	MembersTraced
)

var memberModeNames = map[MemberMode]string{
	MembersPublics:      "publics",
	MembersPrivates:     "privates",
	MembersInterns:      "interns",
	MembersInternsMacro: "interns-macro",
	MembersRefers:       "refers",
	MembersImports:      "imports",
	MembersAliases:      "aliases",
	MembersMap:          "map",
	MembersSpecialForms: "special-forms",
	MembersRecords:      "records",
	MembersMultimethods: "multimethods",
	MembersTraced:       "traced",
}

// String returns the label of the mode.
func (m MemberMode) String() string {
	if name, ok := memberModeNames[m]; ok {
		return name
	}
	return "unknown"
}

// Admits reports whether the member belongs to the mode's bucket.
func (m MemberMode) Admits(mem *Member) bool {
	switch m {
	case MembersPublics:
		return mem.Is(KindPublic)
	case MembersPrivates:
		return mem.Is(KindPrivate)
	case MembersInterns:
		return mem.Is(KindIntern)
	case MembersInternsMacro:
		return mem.Is(KindIntern) && mem.Is(KindMacro)
	case MembersRefers:
		return mem.Is(KindRefer)
	case MembersImports:
		return mem.Is(KindImport)
	case MembersAliases:
		return mem.Is(KindAlias)
	case MembersMap:
		return true
	case MembersSpecialForms:
		return mem.Is(KindSpecialForm)
	case MembersRecords:
		return mem.Is(KindRecord)
	case MembersMultimethods:
		return mem.Is(KindMultimethod)
	case MembersTraced:
		return mem.Is(KindTraced)
	default:
		return false
	}
}

// ParseMemberMode converts a label to a MemberMode.
func ParseMemberMode(s string) (MemberMode, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range MemberModes() {
		if memberModeNames[m] == s {
			return m, true
		}
	}
	return MembersPublics, false
}

// MemberModes returns every member mode in menu order.
func MemberModes() []MemberMode {
	return []MemberMode{
		MembersPublics, MembersPrivates, MembersInterns, MembersInternsMacro,
		MembersRefers, MembersImports, MembersAliases, MembersMap,
		MembersSpecialForms, MembersRecords, MembersMultimethods, MembersTraced,
	}
}

// =============================================================================
// DocFacet
// =============================================================================

// DocFacet is a documentation view of a member.
type DocFacet int

// Documentation facets.
const (
	FacetDoc DocFacet = iota
	FacetSource
	FacetExamples
	FacetComments
	FacetSeeAlsos
	FacetValue
)

// String returns the label of the facet.
func (f DocFacet) String() string {
	switch f {
	case FacetDoc:
		return "Doc"
	case FacetSource:
		return "Source"
	case FacetExamples:
		return "Examples"
	case FacetComments:
		return "Comments"
	case FacetSeeAlsos:
		return "See-alsos"
	case FacetValue:
		return "Value"
	default:
		return "unknown"
	}
}

// ParseDocFacet converts a label to a DocFacet. Matching is case-insensitive.
func ParseDocFacet(s string) (DocFacet, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "doc", "":
		return FacetDoc, true
	case "source":
		return FacetSource, true
	case "examples":
		return FacetExamples, true
	case "comments":
		return FacetComments, true
	case "see-alsos", "seealsos", "see-also":
		return FacetSeeAlsos, true
	case "value":
		return FacetValue, true
	default:
		return FacetDoc, false
	}
}

// DocFacets returns every facet in menu order.
func DocFacets() []DocFacet {
	return []DocFacet{FacetDoc, FacetSource, FacetExamples, FacetComments, FacetSeeAlsos, FacetValue}
}
