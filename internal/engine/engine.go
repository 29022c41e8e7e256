// Package engine is the single owner of browser state. It wires the catalog,
// both filters, the selection coordinator and the resolution service behind
// one synchronous command surface, and applies asynchronous completions.
//
// An Engine is not safe for concurrent use; wrap it in a Loop when several
// goroutines issue commands.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/leapstack-labs/nsbrowse/internal/catalog"
	"github.com/leapstack-labs/nsbrowse/internal/filter"
	"github.com/leapstack-labs/nsbrowse/internal/resolve"
	"github.com/leapstack-labs/nsbrowse/internal/selection"
	"github.com/leapstack-labs/nsbrowse/internal/view"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
)

// ViewFunc is called when documentation for a member resolves successfully.
type ViewFunc func(member core.Member, facet core.DocFacet, text string)

// Config holds engine configuration.
type Config struct {
	// Host supplies namespaces, members and documentation
	Host core.Host

	// Initial filter and facet settings
	NamespaceMode    core.NamespaceMode
	NamespacePattern string
	MemberMode       core.MemberMode
	MemberPattern    string
	DocFacet         core.DocFacet

	// FilterCacheSize bounds the compiled pattern cache shared by both lists
	FilterCacheSize int

	// Resolve configures the resolution service; its Host and Logger are
	// filled in from this Config
	Resolve resolve.Config

	// OnView is called for every applied documentation result (optional)
	OnView ViewFunc

	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine orchestrates the browsing pipeline.
type Engine struct {
	logger   *slog.Logger
	catalog  *catalog.Store
	resolver *resolve.Service
	coord    *selection.Coordinator
	canTrace bool
	onView   ViewFunc

	namespaces *filter.State[*core.Namespace, core.NamespaceMode]
	members    *filter.State[*core.Member, core.MemberMode]

	visibleNamespaces []*core.Namespace
	visibleMembers    []*core.Member

	docText   string
	docStatus view.Status
	required  map[string]view.Status
}

// New creates an engine. The catalog is empty until Refresh is called.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	size := cfg.FilterCacheSize
	if size <= 0 {
		size = filter.DefaultCacheSize
	}
	cache := filter.NewCache(size)

	rcfg := cfg.Resolve
	rcfg.Host = cfg.Host
	rcfg.Logger = logger.With("component", "resolve")

	_, canTrace := cfg.Host.(core.Tracer)

	e := &Engine{
		logger:     logger,
		catalog:    catalog.New(cfg.Host, logger.With("component", "catalog")),
		resolver:   resolve.New(rcfg),
		coord:      selection.New(cfg.DocFacet),
		canTrace:   canTrace,
		onView:     cfg.OnView,
		namespaces: filter.New[*core.Namespace](cfg.NamespaceMode, cache),
		members:    filter.New[*core.Member](cfg.MemberMode, cache),
		docStatus:  view.Idle(),
		required:   make(map[string]view.Status),
	}
	e.namespaces.SetPattern(cfg.NamespacePattern)
	e.members.SetPattern(cfg.MemberPattern)
	e.recompute()
	return e
}

// Close cancels in-flight work and waits for the workers.
func (e *Engine) Close() {
	e.resolver.Close()
}

// Catalog exposes the catalog store for read-only queries.
func (e *Engine) Catalog() *catalog.Store {
	return e.catalog
}

// Selection returns a copy of the selection state.
func (e *Engine) Selection() selection.Snapshot {
	return e.coord.Snapshot()
}

// Completions delivers finished resolution tasks; pass them to Apply.
func (e *Engine) Completions() <-chan resolve.Completion {
	return e.resolver.Completions()
}

// InFlight returns the number of resolution slots with pending work.
func (e *Engine) InFlight() int {
	return e.resolver.InFlight()
}

// =============================================================================
// Commands
// =============================================================================

// Refresh re-syncs the catalog from the host and issues a require task for
// every stale namespace, so changed sources reload off the owner goroutine.
// The engine stays usable on error with whatever the catalog already held.
func (e *Engine) Refresh(ctx context.Context) error {
	before := e.catalog.Version()
	err := e.catalog.Refresh(ctx)
	if e.catalog.Version() != before || e.visibleNamespaces == nil {
		e.recompute()
	}
	for _, ns := range e.catalog.ListNamespaces() {
		if !ns.Stale || e.resolver.Pending(resolve.RequireSlot(ns.Name)) {
			continue
		}
		e.logger.Info("reloading changed namespace", "namespace", ns.Name)
		e.resolver.Require(ns.Name, e.coord.Generation())
		e.required[ns.Name] = view.Pending()
	}
	if err != nil {
		return fmt.Errorf("failed to refresh catalog: %w", err)
	}
	return nil
}

// SetNamespaceFilter changes the namespace mode and pattern. An invalid
// pattern is not an error; it shows up as NamespaceInvalidPattern.
func (e *Engine) SetNamespaceFilter(mode core.NamespaceMode, pattern string) {
	if !e.namespaces.Set(mode, pattern) {
		return
	}
	e.logger.Debug("namespace filter changed", "mode", mode, "pattern", pattern)
	e.visibleNamespaces = e.namespaces.Apply(e.catalog.ListNamespaces())
	e.apply(e.coord.ReconcileNamespaces(e.visibleNamespaces))
	e.recomputeMembers()
}

// SetMemberFilter changes the member mode and pattern.
func (e *Engine) SetMemberFilter(mode core.MemberMode, pattern string) {
	if !e.members.Set(mode, pattern) {
		return
	}
	e.logger.Debug("member filter changed", "mode", mode, "pattern", pattern)
	e.recomputeMembers()
}

// SelectNamespace selects a visible namespace by name.
func (e *Engine) SelectNamespace(name string) error {
	ns, ok := e.catalog.Namespace(name)
	if !ok || !containsNamespace(e.visibleNamespaces, ns) {
		return fmt.Errorf("select namespace %s: %w", name, core.ErrStaleSelection)
	}
	e.logger.Debug("namespace selected", "namespace", name)
	e.apply(e.coord.SelectNamespace(ns))
	e.visibleNamespaces = e.filterNamespaces()
	return nil
}

// SelectMember selects a visible member of the selected namespace.
func (e *Engine) SelectMember(qualifiedName string) error {
	m, ok := e.catalog.Member(qualifiedName)
	if !ok {
		return fmt.Errorf("select member %s: %w", qualifiedName, core.ErrStaleSelection)
	}
	eff, err := e.coord.SelectMember(m, e.visibleMembers)
	if err != nil {
		return err
	}
	e.logger.Debug("member selected", "member", qualifiedName, "generation", e.coord.Generation())
	e.apply(eff)
	return nil
}

// SetDocFacet switches the documentation facet.
func (e *Engine) SetDocFacet(facet core.DocFacet) {
	e.apply(e.coord.ChangeDocFacet(facet))
}

// Require asks the host to load a namespace, or to reload a stale one. It
// reports whether a task was issued: a current loaded namespace, or one
// with a require in flight, issues nothing.
func (e *Engine) Require(name string) (bool, error) {
	ns, ok := e.catalog.Namespace(name)
	if !ok {
		return false, fmt.Errorf("require %s: %w", name, core.ErrNotFound)
	}
	if (ns.Loaded && !ns.Stale) || e.resolver.Pending(resolve.RequireSlot(name)) {
		return false, nil
	}
	e.resolver.Require(name, e.coord.Generation())
	e.required[name] = view.Pending()
	return true, nil
}

// Trace toggles tracing of a member.
func (e *Engine) Trace(qualifiedName string) error {
	m, ok := e.catalog.Member(qualifiedName)
	if !ok {
		return fmt.Errorf("trace %s: %w", qualifiedName, core.ErrNotFound)
	}
	if !core.Traceable(m) {
		return fmt.Errorf("trace %s: %w", qualifiedName, resolve.ErrNotTraceable)
	}
	_, err := e.resolver.Trace(*m, e.coord.Generation())
	return err
}

// CopyFQN returns the qualified name of the selected member.
func (e *Engine) CopyFQN() (string, bool) {
	m := e.coord.Member()
	if m == nil {
		return "", false
	}
	return m.QualifiedName(), true
}

// PasteFQN selects the namespace and member named by text ("ns/name").
func (e *Engine) PasteFQN(text string) error {
	ns, name, ok := core.SplitQualifiedName(strings.TrimSpace(text))
	if !ok {
		return fmt.Errorf("paste %q: not a qualified name: %w", text, core.ErrStaleSelection)
	}
	if err := e.SelectNamespace(ns); err != nil {
		return err
	}
	return e.SelectMember(core.QualifiedName(ns, name))
}

// SourceLocation returns the source token and line of the selection: the
// member's definition when a member is selected, else the namespace source.
func (e *Engine) SourceLocation() (source string, line int, ok bool) {
	ns := e.coord.Namespace()
	if ns == nil || ns.Source == "" {
		return "", 0, false
	}
	if m := e.coord.Member(); m != nil {
		return ns.Source, m.Line, true
	}
	return ns.Source, 0, true
}

// RequireStatus returns the status of a namespace's require slot: idle if
// it was never required by this engine.
func (e *Engine) RequireStatus(name string) view.Status {
	if st, ok := e.required[name]; ok {
		return st
	}
	return view.Idle()
}

// Display projects the current state.
func (e *Engine) Display() view.DisplayModel {
	return view.Project(view.Input{
		Namespaces:              e.visibleNamespaces,
		NamespaceInvalidPattern: e.namespaces.InvalidPattern(),
		Members:                 e.visibleMembers,
		MemberInvalidPattern:    e.members.InvalidPattern(),
		SelectedNamespace:       e.coord.Namespace(),
		SelectedMember:          e.coord.Member(),
		DocFacet:                e.coord.Facet(),
		DocText:                 e.docText,
		DocStatus:               e.docStatus,
		Required:                e.required,
		CanTrace:                e.canTrace,
	})
}

// =============================================================================
// Completions
// =============================================================================

// Apply folds one completion into the engine state and reports whether it
// changed anything. Superseded completions, and doc results for an older
// generation, are discarded.
func (e *Engine) Apply(ctx context.Context, c resolve.Completion) bool {
	if !e.resolver.Settle(c) {
		return false
	}

	switch c.Kind {
	case resolve.TaskRequire:
		e.applyRequire(ctx, c)
	case resolve.TaskDoc:
		return e.applyDoc(c)
	case resolve.TaskTrace:
		e.applyTrace(ctx, c)
	}
	return true
}

// Await blocks until one completion arrives and applies it.
func (e *Engine) Await(ctx context.Context) (bool, error) {
	select {
	case c := <-e.resolver.Completions():
		return e.Apply(ctx, c), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Drain applies completions until no task is in flight.
func (e *Engine) Drain(ctx context.Context) error {
	for e.resolver.InFlight() > 0 {
		if _, err := e.Await(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyRequire(ctx context.Context, c resolve.Completion) {
	if !c.OK() {
		e.logger.Warn("require failed", "namespace", c.Target, "error", c.Err)
		e.required[c.Target] = view.Failed(c.ErrorKind())
		return
	}

	if _, err := e.catalog.MarkLoaded(ctx, c.Target); err != nil {
		e.logger.Warn("failed to list members after require", "namespace", c.Target, "error", err)
		e.required[c.Target] = view.Failed(core.Classify(err))
	} else {
		e.required[c.Target] = view.OK()
	}
	e.logger.Info("namespace loaded", "namespace", c.Target)
	e.recompute()
}

func (e *Engine) applyDoc(c resolve.Completion) bool {
	if c.Generation != e.coord.Generation() {
		e.logger.Debug("dropping doc for older generation",
			"member", c.Target,
			"generation", c.Generation,
			"current", e.coord.Generation())
		return false
	}

	if !c.OK() {
		e.docText = ""
		e.docStatus = view.Failed(c.ErrorKind())
		return true
	}

	e.docText = c.Text
	e.docStatus = view.OK()
	if e.onView != nil {
		e.onView(c.Member, c.Facet, c.Text)
	}
	return true
}

func (e *Engine) applyTrace(ctx context.Context, c resolve.Completion) {
	if !c.OK() {
		e.logger.Warn("trace failed", "member", c.Target, "error", c.Err)
		return
	}
	e.logger.Info("trace toggled", "member", c.Target, "traced", c.Traced)
	if err := e.catalog.ReloadMembers(ctx, c.Member.Namespace); err != nil {
		e.logger.Warn("failed to reload members after trace", "namespace", c.Member.Namespace, "error", err)
	}
	e.recomputeMembers()
}

// =============================================================================
// Internals
// =============================================================================

func (e *Engine) apply(eff selection.Effect) {
	if eff.ClearDoc {
		e.resolver.Cancel(resolve.DocSlot)
		e.docText = ""
		e.docStatus = view.Idle()
	}
	if eff.RecomputeMembers {
		e.recomputeMembers()
	}
	if req := eff.ResolveDoc; req != nil {
		e.resolver.ResolveDoc(*req.Member, req.Facet, req.Generation)
		e.docStatus = view.Pending()
	}
}

// recompute re-filters both lists after a catalog change. A catalog change
// never drops the selected namespace; only filter changes do.
func (e *Engine) recompute() {
	e.visibleNamespaces = e.filterNamespaces()
	e.apply(e.coord.ReconcileNamespaces(e.visibleNamespaces))
	e.recomputeMembers()
}

// filterNamespaces applies the namespace filter and pins the selected
// namespace in its catalog position when the filter no longer admits it,
// e.g. a namespace selected under "unloaded" that has just been required.
func (e *Engine) filterNamespaces() []*core.Namespace {
	visible := e.namespaces.Apply(e.catalog.ListNamespaces())
	sel := e.coord.Namespace()
	if sel == nil || containsNamespace(visible, sel) {
		return visible
	}
	i := sort.Search(len(visible), func(i int) bool { return visible[i].Name >= sel.Name })
	return slices.Insert(visible, i, sel)
}

func (e *Engine) recomputeMembers() {
	var candidates []*core.Member
	if ns := e.coord.Namespace(); ns != nil {
		candidates = e.catalog.MembersOf(ns.Name)
	}
	e.visibleMembers = e.members.Apply(candidates)
	e.apply(e.coord.ReconcileMembers(e.visibleMembers))
}

func containsNamespace(list []*core.Namespace, ns *core.Namespace) bool {
	for _, candidate := range list {
		if candidate == ns {
			return true
		}
	}
	return false
}
