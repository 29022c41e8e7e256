package macro

import (
	"context"
	"fmt"
	"maps"

	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"go.starlark.net/starlark"
)

// Eval evaluates a Starlark expression in the scope of a loaded namespace:
// its globals and load bindings on top of the predeclared environment. An
// empty namespace evaluates against builtins alone.
func (h *Host) Eval(ctx context.Context, namespace, expr string) (string, error) {
	env := h.predeclaredSnapshot()
	if namespace != "" && namespace != BuiltinsNamespace {
		m := h.current(namespace)
		if m == nil {
			return "", fmt.Errorf("namespace %s is not loaded: %w", namespace, core.ErrNotFound)
		}
		for _, d := range m.parsed.Defs {
			if d.Kind != defLoad {
				continue
			}
			if dep := h.loadedModule(d.Module); dep != nil {
				if v, ok := h.exports(dep)[d.Original]; ok {
					env[d.Name] = v
				}
			}
		}
		maps.Copy(env, h.exports(m))
	}

	thread, release := h.pool.Acquire(ctx, "eval:"+namespace)
	defer release()

	v, err := starlark.EvalOptions(fileOptions, thread, "<eval>", expr, env)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("eval: %w", err)
	}
	return v.String(), nil
}
