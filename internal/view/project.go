// Package view projects engine state into a flat, renderer-facing display
// model. Projection is pure: it reads its input and allocates fresh rows, so
// a renderer may keep a DisplayModel without aliasing engine state.
package view

import (
	"github.com/leapstack-labs/nsbrowse/pkg/core"
)

// State is the lifecycle of an asynchronous slot as shown to the user.
type State int

// Slot states.
const (
	StateIdle State = iota
	StatePending
	StateOK
	StateError
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateOK:
		return "ok"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is the state of an asynchronous slot plus its failure kind.
type Status struct {
	State State
	Err   core.ErrorKind
}

// Idle is the status of a slot with nothing to show.
func Idle() Status { return Status{State: StateIdle} }

// Pending is the status of a slot whose task is in flight.
func Pending() Status { return Status{State: StatePending} }

// OK is the status of a slot whose last task succeeded.
func OK() Status { return Status{State: StateOK} }

// Failed is the status of a slot whose last task failed with kind.
func Failed(kind core.ErrorKind) Status { return Status{State: StateError, Err: kind} }

// String renders the status as "ok", "pending" or "error(NotFound)".
func (s Status) String() string {
	if s.State == StateError {
		return "error(" + s.Err.String() + ")"
	}
	return s.State.String()
}

// NamespaceRow is one visible namespace.
type NamespaceRow struct {
	Name        string
	Loaded      bool
	Stale       bool
	MemberCount int
	Source      string
	Selected    bool
	Require     Status // the namespace's require slot
}

// MemberRow is one visible member.
type MemberRow struct {
	Name          string
	QualifiedName string
	Kinds         core.KindSet
	Line          int
	Selected      bool
}

// DisplayModel is everything a renderer needs to draw the three views.
type DisplayModel struct {
	NamespaceRows           []NamespaceRow
	NamespaceMatchCount     int
	NamespaceInvalidPattern bool

	MemberRows           []MemberRow
	MemberMatchCount     int
	MemberInvalidPattern bool

	SelectedNamespace string
	SelectedMember    string // qualified name

	DocFacet  core.DocFacet
	DocText   string
	DocStatus Status

	RequireStatus  Status // require slot of the selected namespace
	RequireEnabled bool
	TraceEnabled   bool
}

// Input is the engine state a projection reads.
type Input struct {
	Namespaces              []*core.Namespace
	NamespaceInvalidPattern bool

	Members              []*core.Member
	MemberInvalidPattern bool

	SelectedNamespace *core.Namespace
	SelectedMember    *core.Member

	DocFacet  core.DocFacet
	DocText   string
	DocStatus Status

	// Required holds require slot statuses by namespace; absent is idle
	Required map[string]Status
	// CanTrace reports whether the host supports tracing at all
	CanTrace bool
}

// Project builds the display model for in.
func Project(in Input) DisplayModel {
	out := DisplayModel{
		NamespaceRows:           make([]NamespaceRow, 0, len(in.Namespaces)),
		NamespaceMatchCount:     len(in.Namespaces),
		NamespaceInvalidPattern: in.NamespaceInvalidPattern,
		MemberRows:              make([]MemberRow, 0, len(in.Members)),
		MemberMatchCount:        len(in.Members),
		MemberInvalidPattern:    in.MemberInvalidPattern,
		DocFacet:                in.DocFacet,
		DocText:                 in.DocText,
		DocStatus:               in.DocStatus,
	}

	if sel := in.SelectedNamespace; sel != nil {
		out.SelectedNamespace = sel.Name
		out.RequireStatus = in.Required[sel.Name]
		out.RequireEnabled = (!sel.Loaded || sel.Stale) && out.RequireStatus.State != StatePending
	}
	if in.SelectedMember != nil {
		out.SelectedMember = in.SelectedMember.QualifiedName()
		out.TraceEnabled = in.CanTrace && core.Traceable(in.SelectedMember)
	}

	for _, ns := range in.Namespaces {
		out.NamespaceRows = append(out.NamespaceRows, NamespaceRow{
			Name:        ns.Name,
			Loaded:      ns.Loaded,
			Stale:       ns.Stale,
			MemberCount: ns.MemberCount,
			Source:      ns.Source,
			Selected:    ns.Name == out.SelectedNamespace,
			Require:     in.Required[ns.Name],
		})
	}
	for _, m := range in.Members {
		qn := m.QualifiedName()
		out.MemberRows = append(out.MemberRows, MemberRow{
			Name:          m.Name,
			QualifiedName: qn,
			Kinds:         m.Kinds,
			Line:          m.Line,
			Selected:      qn == out.SelectedMember,
		})
	}

	return out
}
