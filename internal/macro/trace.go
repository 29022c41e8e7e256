package macro

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"go.starlark.net/starlark"
)

// ToggleTrace implements core.Tracer. Tracing replaces the function with a
// wrapper in everything the host hands out afterwards: load() exports, the
// predeclared environment for builtins and Eval scopes. Code that already
// captured the function keeps calling it untraced.
func (h *Host) ToggleTrace(ctx context.Context, member core.Member) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	qn := member.QualifiedName()
	fn, err := h.callable(member)
	if err != nil {
		return false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.traced[qn]; ok {
		delete(h.traced, qn)
		h.logger.Info("trace disabled", "member", qn)
		return false, nil
	}
	h.traced[qn] = h.wrap(qn, fn)
	h.logger.Info("trace enabled", "member", qn)
	return true, nil
}

func (h *Host) callable(member core.Member) (starlark.Callable, error) {
	var v starlark.Value
	if member.Namespace == BuiltinsNamespace {
		v = h.builtins.values[member.Name]
	} else if m := h.current(member.Namespace); m != nil {
		v = m.globals[member.Name]
	}

	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s is not a loaded function: %w", member.QualifiedName(), core.ErrNotFound)
	}
	return fn, nil
}

func (h *Host) wrap(qn string, fn starlark.Callable) *starlark.Builtin {
	return starlark.NewBuiltin(fn.Name(), func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		depth := thread.CallStackDepth()
		h.traceLine(depth, "-> %s(%s)", qn, formatArgs(args, kwargs))
		v, err := starlark.Call(thread, fn, args, kwargs)
		if err != nil {
			h.traceLine(depth, "<- %s failed: %v", qn, err)
			return nil, err
		}
		h.traceLine(depth, "<- %s = %s", qn, v.String())
		return v, nil
	})
}

func (h *Host) traceLine(depth int, format string, args ...any) {
	line := strings.Repeat("  ", max(depth-1, 0)) + fmt.Sprintf(format, args...)
	if h.output != nil {
		fmt.Fprintln(h.output, line)
		return
	}
	h.logger.Info("trace", "call", line)
}

func formatArgs(args starlark.Tuple, kwargs []starlark.Tuple) string {
	parts := make([]string, 0, len(args)+len(kwargs))
	for _, a := range args {
		parts = append(parts, a.String())
	}
	for _, kv := range kwargs {
		parts = append(parts, fmt.Sprintf("%s=%s", kv[0].(starlark.String).GoString(), kv[1].String()))
	}
	return strings.Join(parts, ", ")
}
