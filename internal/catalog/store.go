// Package catalog holds the set of known namespaces and their members,
// indexed for filtered lookup. It performs no I/O of its own: every sync with
// the browsed environment goes through the injected core.Host.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/leapstack-labs/nsbrowse/pkg/core"
)

// Store is the Catalog Store. It is owned by a single goroutine and is not
// safe for concurrent use.
type Store struct {
	host   core.Host
	logger *slog.Logger

	// byName maps namespace names to their (identity-stable) records
	byName map[string]*core.Namespace

	// ordered is byName sorted by name; rebuilt only when membership changes
	ordered []*core.Namespace

	// members maps namespace names to members sorted by name
	members map[string][]*core.Member

	// byQualified maps "ns/name" to the member record
	byQualified map[string]*core.Member

	version uint64
}

// New creates an empty store backed by host.
func New(host core.Host, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		host:        host,
		logger:      logger,
		byName:      make(map[string]*core.Namespace),
		members:     make(map[string][]*core.Member),
		byQualified: make(map[string]*core.Member),
	}
}

// Version increases every time the catalog changes in a way visible to a
// filtered view (membership, loaded flags, member sets).
func (s *Store) Version() uint64 {
	return s.version
}

// ListNamespaces returns all namespaces in lexicographic order.
// The returned slice must not be modified.
func (s *Store) ListNamespaces() []*core.Namespace {
	return s.ordered
}

// Namespace looks up a namespace by name.
func (s *Store) Namespace(name string) (*core.Namespace, bool) {
	ns, ok := s.byName[name]
	return ns, ok
}

// MembersOf returns the members of a namespace in lexicographic order.
// Unknown or unloaded namespaces have no members.
func (s *Store) MembersOf(name string) []*core.Member {
	return s.members[name]
}

// Member looks up a member by qualified name.
func (s *Store) Member(qualifiedName string) (*core.Member, bool) {
	m, ok := s.byQualified[qualifiedName]
	return m, ok
}

// Refresh re-syncs the whole catalog from the host. Namespaces and members
// that still exist keep their identity; namespaces the host stops reporting
// are kept as they are.
func (s *Store) Refresh(ctx context.Context) error {
	infos, err := s.host.ListNamespaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to list namespaces: %w", err)
	}

	changed := false
	added := false
	reported := make(map[string]bool, len(infos))
	for _, info := range infos {
		reported[info.Name] = info.Loaded
		ns, ok := s.byName[info.Name]
		if !ok {
			ns = &core.Namespace{Name: info.Name}
			s.byName[info.Name] = ns
			added = true
		}
		// Loading is one-way: a host reporting a loaded namespace as
		// unloaded does not take it back.
		loaded := ns.Loaded || info.Loaded
		stale := loaded && info.Stale
		if ns.Loaded != loaded || ns.Stale != stale || ns.Source != info.Source {
			changed = true
		}
		if ns.Loaded && !info.Loaded {
			s.logger.Debug("host reports loaded namespace as unloaded, keeping it loaded", "namespace", ns.Name)
		}
		ns.Loaded = loaded
		ns.Stale = stale
		ns.Source = info.Source
	}
	if added {
		s.reorder()
	}

	// Member sets can change underneath loaded namespaces (edits, tracing),
	// so every reported loaded namespace is re-listed.
	var firstErr error
	for _, ns := range s.ordered {
		hostLoaded, ok := reported[ns.Name]
		if !ok {
			continue
		}
		if !ns.Loaded {
			if len(s.members[ns.Name]) > 0 {
				s.replaceMembers(ns, nil)
				changed = true
			}
			continue
		}
		if !hostLoaded {
			continue
		}
		memberChanged, err := s.syncMembers(ctx, ns)
		if err != nil {
			s.logger.Warn("failed to list members", "namespace", ns.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		changed = changed || memberChanged
	}

	if added || changed {
		s.version++
	}

	s.logger.Debug("catalog refreshed",
		"namespaces", len(s.ordered),
		"added", added,
		"version", s.version)

	return firstErr
}

// MarkLoaded flips a namespace to loaded and fetches its members. A stale
// namespace is marked current and its members re-fetched. It is idempotent:
// a current loaded namespace is left untouched and changed is false.
func (s *Store) MarkLoaded(ctx context.Context, name string) (changed bool, err error) {
	ns, ok := s.byName[name]
	if !ok {
		ns = &core.Namespace{Name: name}
		s.byName[name] = ns
		s.reorder()
	}
	if ns.Loaded && !ns.Stale {
		return false, nil
	}

	ns.Loaded = true
	ns.Stale = false
	s.version++
	if _, err := s.syncMembers(ctx, ns); err != nil {
		return true, err
	}
	return true, nil
}

// ReloadMembers re-fetches the member set of one namespace.
func (s *Store) ReloadMembers(ctx context.Context, name string) error {
	ns, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("namespace %s: %w", name, core.ErrNotFound)
	}
	changed, err := s.syncMembers(ctx, ns)
	if err != nil {
		return err
	}
	if changed {
		s.version++
	}
	return nil
}

// syncMembers lists a namespace's members from the host and merges them in,
// reusing existing *Member records by name.
func (s *Store) syncMembers(ctx context.Context, ns *core.Namespace) (bool, error) {
	infos, err := s.host.ListMembers(ctx, ns.Name)
	if err != nil {
		return false, fmt.Errorf("failed to list members of %s: %w", ns.Name, err)
	}

	existing := make(map[string]*core.Member, len(s.members[ns.Name]))
	for _, m := range s.members[ns.Name] {
		existing[m.Name] = m
	}

	changed := false
	next := make([]*core.Member, 0, len(infos))
	seen := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		if _, dup := seen[info.Name]; dup {
			continue
		}
		seen[info.Name] = struct{}{}

		m, ok := existing[info.Name]
		if !ok {
			m = &core.Member{Namespace: ns.Name, Name: info.Name}
			changed = true
		} else if m.Kinds != info.Kinds || m.Line != info.Line {
			changed = true
		}
		m.Kinds = info.Kinds
		m.Line = info.Line
		next = append(next, m)
	}
	if len(next) != len(existing) {
		changed = true
	}

	if changed {
		s.replaceMembers(ns, next)
	}
	return changed, nil
}

func (s *Store) replaceMembers(ns *core.Namespace, members []*core.Member) {
	for _, old := range s.members[ns.Name] {
		delete(s.byQualified, old.QualifiedName())
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	for _, m := range members {
		s.byQualified[m.QualifiedName()] = m
	}

	if len(members) == 0 {
		delete(s.members, ns.Name)
	} else {
		s.members[ns.Name] = members
	}
	ns.MemberCount = len(members)
}

func (s *Store) reorder() {
	ordered := make([]*core.Namespace, 0, len(s.byName))
	for _, ns := range s.byName {
		ordered = append(ordered, ns)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })
	s.ordered = ordered
}
