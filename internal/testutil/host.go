package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/leapstack-labs/nsbrowse/pkg/core"
)

// FakeHost is an in-memory core.Host and core.Tracer.
//
// Members registered for an unloaded namespace stay hidden until
// RequireNamespace succeeds. A changed namespace stays stale, with its old
// members, until it is required again. Hold installs a gate that blocks the matching
// call until released, which lets tests complete tasks in any order.
type FakeHost struct {
	mu sync.Mutex

	order      []string
	namespaces map[string]*fakeNamespace
	docs       map[string]string
	docErrs    map[string]error
	reqErrs    map[string]error
	listErr    error
	gates      map[string]chan struct{}
	calls      []string
	traced     map[string]bool
}

type fakeNamespace struct {
	loaded  bool
	stale   bool
	members []core.MemberInfo
	next    []core.MemberInfo // installed when a stale namespace is required
}

// NewFakeHost creates an empty host.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		namespaces: make(map[string]*fakeNamespace),
		docs:       make(map[string]string),
		docErrs:    make(map[string]error),
		reqErrs:    make(map[string]error),
		gates:      make(map[string]chan struct{}),
		traced:     make(map[string]bool),
	}
}

// Member is shorthand for building a MemberInfo.
func Member(name string, kinds ...core.Kind) core.MemberInfo {
	return core.MemberInfo{Name: name, Kinds: core.Kinds(kinds...)}
}

// DocKey is the gate key of a FetchDoc call.
func DocKey(qualifiedName string, facet core.DocFacet) string {
	return "doc:" + qualifiedName + ":" + facet.String()
}

// RequireKey is the gate key of a RequireNamespace call.
func RequireKey(namespace string) string {
	return "require:" + namespace
}

// AddNamespace registers a namespace and the members it exposes once loaded.
func (h *FakeHost) AddNamespace(name string, loaded bool, members ...core.MemberInfo) *FakeHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.namespaces[name]; !ok {
		h.order = append(h.order, name)
	}
	h.namespaces[name] = &fakeNamespace{loaded: loaded, members: members}
	return h
}

// Change marks a loaded namespace stale, as if its source was edited. The
// next successful RequireNamespace replaces its members with members.
func (h *FakeHost) Change(namespace string, members ...core.MemberInfo) *FakeHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ns, ok := h.namespaces[namespace]; ok && ns.loaded {
		ns.stale = true
		ns.next = members
	}
	return h
}

// Unload makes the host report a namespace as unloaded.
func (h *FakeHost) Unload(namespace string) *FakeHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ns, ok := h.namespaces[namespace]; ok {
		ns.loaded = false
		ns.stale = false
	}
	return h
}

// SetDoc sets the text returned for a member facet.
func (h *FakeHost) SetDoc(qualifiedName string, facet core.DocFacet, text string) *FakeHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.docs[DocKey(qualifiedName, facet)] = text
	return h
}

// FailDoc makes FetchDoc for a member facet return err.
func (h *FakeHost) FailDoc(qualifiedName string, facet core.DocFacet, err error) *FakeHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.docErrs[DocKey(qualifiedName, facet)] = err
	return h
}

// FailRequire makes RequireNamespace for ns return err.
func (h *FakeHost) FailRequire(namespace string, err error) *FakeHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reqErrs[namespace] = err
	return h
}

// FailList makes the listing calls return err until cleared with nil.
func (h *FakeHost) FailList(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listErr = err
}

// Hold installs a gate for key and returns its release function.
func (h *FakeHost) Hold(key string) (release func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	gate := make(chan struct{})
	h.gates[key] = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Calls returns the recorded call log.
func (h *FakeHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

// CallCount counts recorded calls equal to call.
func (h *FakeHost) CallCount(call string) int {
	n := 0
	for _, c := range h.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (h *FakeHost) record(call string) chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
	return h.gates[call]
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListNamespaces implements core.Host.
func (h *FakeHost) ListNamespaces(_ context.Context) ([]core.NamespaceInfo, error) {
	h.record("list-namespaces")

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listErr != nil {
		return nil, h.listErr
	}
	out := make([]core.NamespaceInfo, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, core.NamespaceInfo{
			Name:   name,
			Loaded: h.namespaces[name].loaded,
			Stale:  h.namespaces[name].stale,
			Source: name + ".fake",
		})
	}
	return out, nil
}

// ListMembers implements core.Host.
func (h *FakeHost) ListMembers(_ context.Context, namespace string) ([]core.MemberInfo, error) {
	h.record("list-members:" + namespace)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listErr != nil {
		return nil, h.listErr
	}
	ns, ok := h.namespaces[namespace]
	if !ok {
		return nil, fmt.Errorf("namespace %s: %w", namespace, core.ErrNotFound)
	}
	if !ns.loaded {
		return nil, nil
	}
	out := make([]core.MemberInfo, len(ns.members))
	for i, m := range ns.members {
		if h.traced[core.QualifiedName(namespace, m.Name)] {
			m.Kinds = m.Kinds.With(core.KindTraced)
		}
		out[i] = m
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name }) // host order is not sorted
	return out, nil
}

// RequireNamespace implements core.Host.
func (h *FakeHost) RequireNamespace(ctx context.Context, namespace string) error {
	key := RequireKey(namespace)
	if err := wait(ctx, h.record(key)); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.reqErrs[namespace]; err != nil {
		return err
	}
	ns, ok := h.namespaces[namespace]
	if !ok {
		return fmt.Errorf("namespace %s: %w", namespace, core.ErrNotFound)
	}
	if ns.stale {
		ns.members, ns.next = ns.next, nil
		ns.stale = false
	}
	ns.loaded = true
	return nil
}

// FetchDoc implements core.Host.
func (h *FakeHost) FetchDoc(ctx context.Context, member core.Member, facet core.DocFacet) (string, error) {
	key := DocKey(member.QualifiedName(), facet)
	if err := wait(ctx, h.record(key)); err != nil {
		return "", err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.docErrs[key]; err != nil {
		return "", err
	}
	text, ok := h.docs[key]
	if !ok {
		return "", fmt.Errorf("%s %s: %w", member.QualifiedName(), facet, core.ErrNotFound)
	}
	return text, nil
}

// ToggleTrace implements core.Tracer.
func (h *FakeHost) ToggleTrace(ctx context.Context, member core.Member) (bool, error) {
	qn := member.QualifiedName()
	if err := wait(ctx, h.record("trace:"+qn)); err != nil {
		return false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.traced[qn] = !h.traced[qn]
	return h.traced[qn], nil
}
