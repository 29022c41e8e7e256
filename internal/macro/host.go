// Package macro is a core.Host backed by a directory of Starlark files.
//
// Each <name>.star file is a namespace. Files are discovered unloaded and
// executed on RequireNamespace; load() pulls in sibling files, which become
// loaded as well. A built-in namespace, "builtins", is always loaded and
// lists the Starlark universe, the predeclared modules and the keywords.
//
// Optional <name>.notes.yaml sidecars add examples, see-also links, extra
// documentation and extra member kinds.
package macro

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"

	starctx "github.com/leapstack-labs/nsbrowse/internal/starlark"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// BuiltinsNamespace is the name of the always-loaded built-in namespace.
const BuiltinsNamespace = "builtins"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	Recursion:       true,
}

// Config holds host configuration.
type Config struct {
	// Dir is the macros directory; a missing directory is an empty host
	Dir string
	// Threads bounds the idle Starlark thread pool
	Threads int
	// MaxSteps bounds a single execution; 0 is unbounded
	MaxSteps uint64
	// Output receives print() and trace output (optional, logs if nil)
	Output io.Writer
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Host serves namespaces from a macros directory. It is safe for concurrent
// use; namespace execution is serialized.
type Host struct {
	dir      string
	logger   *slog.Logger
	output   io.Writer
	pool     *starctx.ThreadPool
	builtins *builtinModule

	loadMu sync.Mutex // serializes execution

	mu      sync.RWMutex
	modules map[string]*module
	traced  map[string]*starlark.Builtin // qualified name -> tracing wrapper
}

var (
	_ core.Host   = (*Host)(nil)
	_ core.Tracer = (*Host)(nil)
)

// New creates a host for cfg.Dir.
func New(cfg Config) (*Host, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	builtins, err := newBuiltinModule()
	if err != nil {
		return nil, fmt.Errorf("failed to load builtin notes: %w", err)
	}

	h := &Host{
		dir:      cfg.Dir,
		logger:   logger,
		output:   cfg.Output,
		builtins: builtins,
		modules:  make(map[string]*module),
		traced:   make(map[string]*starlark.Builtin),
	}
	h.pool = starctx.NewThreadPool(cfg.Threads,
		starctx.WithPrint(h.print),
		starctx.WithMaxSteps(cfg.MaxSteps))
	return h, nil
}

// Dir returns the macros directory.
func (h *Host) Dir() string {
	return h.dir
}

// ListNamespaces implements core.Host. It only stats files: a loaded
// namespace whose file or notes changed since execution is reported stale
// and keeps serving its executed contents until it is required again.
func (h *Host) ListNamespaces(_ context.Context) ([]core.NamespaceInfo, error) {
	files, skipped, err := scan(h.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrHostUnavailable, err)
	}
	for _, err := range skipped {
		h.logger.Warn("skipping namespace file", "error", err)
	}

	out := make([]core.NamespaceInfo, 0, len(files)+1)
	out = append(out, core.NamespaceInfo{Name: BuiltinsNamespace, Loaded: true})
	for _, f := range files {
		m := h.current(f.Namespace)
		out = append(out, core.NamespaceInfo{
			Name:   f.Namespace,
			Loaded: m != nil,
			Stale:  m != nil && m.changed(f),
			Source: f.Path,
		})
	}
	return out, nil
}

// ListMembers implements core.Host. Unloaded namespaces have no members.
func (h *Host) ListMembers(_ context.Context, namespace string) ([]core.MemberInfo, error) {
	var members []core.MemberInfo
	if namespace == BuiltinsNamespace {
		members = h.builtins.members
	} else if m := h.current(namespace); m != nil {
		members = m.members
	} else if h.exists(namespace) {
		return nil, nil
	} else {
		return nil, fmt.Errorf("namespace %s: %w", namespace, core.ErrNotFound)
	}

	out := make([]core.MemberInfo, len(members))
	copy(out, members)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := range out {
		if _, ok := h.traced[core.QualifiedName(namespace, out[i].Name)]; ok {
			out[i].Kinds = out[i].Kinds.With(core.KindTraced)
		}
	}
	return out, nil
}

// RequireNamespace implements core.Host. It executes the namespace file and
// every file it loads. Requiring a loaded namespace does nothing unless its
// file or notes changed, in which case it is executed again; if that fails
// the previous contents stay installed.
func (h *Host) RequireNamespace(ctx context.Context, namespace string) error {
	if namespace == BuiltinsNamespace {
		return nil
	}

	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	force := make(map[string]bool)
	if m := h.current(namespace); m != nil {
		f, err := statSource(h.dir, namespace)
		if err != nil || !m.changed(f) {
			return nil
		}
		force[namespace] = true
	}

	s := &loadSession{host: h, ctx: ctx, force: force, done: make(map[string]*module)}
	if _, err := s.require(namespace); err != nil {
		if force[namespace] {
			h.logger.Warn("reload failed, keeping previous version", "namespace", namespace, "error", err)
		}
		return err
	}
	h.install(s.done)
	h.logger.Info("namespace required", "namespace", namespace, "executed", len(s.done), "reload", force[namespace])
	return nil
}

func (h *Host) install(done map[string]*module) {
	h.mu.Lock()
	defer h.mu.Unlock()
	maps.Copy(h.modules, done)
}

// current returns the executed module of a namespace, or nil.
func (h *Host) current(namespace string) *module {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.modules[namespace]
}

func (h *Host) exists(namespace string) bool {
	if validateNamespace(namespace) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(h.dir, namespace+".star"))
	return err == nil
}

// predeclaredSnapshot returns the globals a namespace executes with,
// including tracing wrappers of traced builtins.
func (h *Host) predeclaredSnapshot() starlark.StringDict {
	env := starctx.Predeclared()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for qn, wrapper := range h.traced {
		if ns, name, _ := core.SplitQualifiedName(qn); ns == BuiltinsNamespace {
			env[name] = wrapper
		}
	}
	return env
}

// exports returns the globals of m as seen by other namespaces, with
// tracing wrappers in place of traced functions.
func (h *Host) exports(m *module) starlark.StringDict {
	out := make(starlark.StringDict, len(m.globals))
	maps.Copy(out, m.globals)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for name := range out {
		if wrapper, ok := h.traced[core.QualifiedName(m.name, name)]; ok {
			out[name] = wrapper
		}
	}
	return out
}

func (h *Host) print(thread *starlark.Thread, msg string) {
	if h.output != nil {
		fmt.Fprintln(h.output, msg)
		return
	}
	h.logger.Info("starlark print", "thread", thread.Name, "msg", msg)
}
