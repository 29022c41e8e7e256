// Package selection implements the browser's selection state machine.
//
// The Coordinator never performs work itself. Every transition returns an
// Effect telling the owner what to recompute or resolve, and bumps the
// generation counter that the owner uses to discard stale resolution
// results.
package selection

import (
	"fmt"

	"github.com/leapstack-labs/nsbrowse/pkg/core"
)

// Phase is the state of the machine.
type Phase int

// Selection phases.
const (
	Idle Phase = iota
	NamespaceSelected
	MemberSelected
)

// String returns the name of the phase.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case NamespaceSelected:
		return "NamespaceSelected"
	case MemberSelected:
		return "MemberSelected"
	default:
		return "unknown"
	}
}

// DocRequest asks the owner to resolve one facet of one member.
type DocRequest struct {
	Member     *core.Member
	Facet      core.DocFacet
	Generation uint64
}

// Effect is the work a transition hands back to the owner.
type Effect struct {
	// RecomputeMembers means the member list must be re-filtered against the
	// newly selected namespace.
	RecomputeMembers bool

	// ClearDoc means any displayed or in-flight documentation is obsolete.
	ClearDoc bool

	// ResolveDoc, when non-nil, must be issued to the doc slot.
	ResolveDoc *DocRequest
}

// Snapshot is a value copy of the selection state.
type Snapshot struct {
	Phase      Phase
	Namespace  string
	Member     string // qualified name
	Facet      core.DocFacet
	Generation uint64
}

// Coordinator holds the current selection.
type Coordinator struct {
	namespace  *core.Namespace
	member     *core.Member
	facet      core.DocFacet
	generation uint64
}

// New creates an idle coordinator with the given initial facet.
func New(facet core.DocFacet) *Coordinator {
	return &Coordinator{facet: facet}
}

// Phase derives the current phase from the selection.
func (c *Coordinator) Phase() Phase {
	switch {
	case c.member != nil:
		return MemberSelected
	case c.namespace != nil:
		return NamespaceSelected
	default:
		return Idle
	}
}

// Namespace returns the selected namespace, or nil.
func (c *Coordinator) Namespace() *core.Namespace { return c.namespace }

// Member returns the selected member, or nil.
func (c *Coordinator) Member() *core.Member { return c.member }

// Facet returns the current documentation facet.
func (c *Coordinator) Facet() core.DocFacet { return c.facet }

// Generation returns the current generation.
func (c *Coordinator) Generation() uint64 { return c.generation }

// Snapshot returns a value copy of the state.
func (c *Coordinator) Snapshot() Snapshot {
	s := Snapshot{Phase: c.Phase(), Facet: c.facet, Generation: c.generation}
	if c.namespace != nil {
		s.Namespace = c.namespace.Name
	}
	if c.member != nil {
		s.Member = c.member.QualifiedName()
	}
	return s
}

// SelectNamespace is legal from any phase. It always clears the member
// selection. Requiring an unloaded namespace is left to an explicit command.
func (c *Coordinator) SelectNamespace(ns *core.Namespace) Effect {
	c.namespace = ns
	c.member = nil
	c.generation++
	return Effect{RecomputeMembers: true, ClearDoc: true}
}

// SelectMember selects m if it is in visible, the currently filtered member
// list of the selected namespace. Otherwise nothing changes and
// core.ErrStaleSelection is returned.
func (c *Coordinator) SelectMember(m *core.Member, visible []*core.Member) (Effect, error) {
	if c.namespace == nil || m == nil || m.Namespace != c.namespace.Name || !contains(visible, m) {
		return Effect{}, fmt.Errorf("select member %s: %w", describe(m), core.ErrStaleSelection)
	}

	c.member = m
	c.generation++
	return Effect{
		ClearDoc:   true,
		ResolveDoc: &DocRequest{Member: m, Facet: c.facet, Generation: c.generation},
	}, nil
}

// ChangeDocFacet switches the facet. With a member selected the same member
// is re-resolved under the new facet.
func (c *Coordinator) ChangeDocFacet(f core.DocFacet) Effect {
	c.facet = f
	c.generation++
	if c.member == nil {
		return Effect{ClearDoc: true}
	}
	return Effect{
		ClearDoc:   true,
		ResolveDoc: &DocRequest{Member: c.member, Facet: f, Generation: c.generation},
	}
}

// ReconcileMembers drops the selected member when it is no longer part of
// the filtered member list.
func (c *Coordinator) ReconcileMembers(visible []*core.Member) Effect {
	if c.member == nil || contains(visible, c.member) {
		return Effect{}
	}
	c.member = nil
	c.generation++
	return Effect{ClearDoc: true}
}

// ReconcileNamespaces returns to Idle when the selected namespace is no
// longer part of the filtered namespace list.
func (c *Coordinator) ReconcileNamespaces(visible []*core.Namespace) Effect {
	if c.namespace == nil {
		return Effect{}
	}
	for _, ns := range visible {
		if ns == c.namespace {
			return Effect{}
		}
	}
	c.namespace = nil
	c.member = nil
	c.generation++
	return Effect{RecomputeMembers: true, ClearDoc: true}
}

func contains(list []*core.Member, m *core.Member) bool {
	for _, candidate := range list {
		if candidate == m {
			return true
		}
	}
	return false
}

func describe(m *core.Member) string {
	if m == nil {
		return "<none>"
	}
	return m.QualifiedName()
}
