// Package starlark holds the Starlark runtime pieces shared by hosts: the
// predeclared environment, a cancellation-aware thread pool and conversion
// of Starlark values to plain Go values.
package starlark

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ToGo converts a Starlark value back to a Go value.
// Returns: string, int64, float64, bool, []any, map[string]any, or nil.
// Values with no Go counterpart (functions, modules) become their String().
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			// Fallback for very large integers - convert to string
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		return float64(val), nil

	case starlark.Bool:
		return bool(val), nil

	case starlark.Indexable: // list, tuple
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case *starlark.Set:
		result := make([]any, 0, val.Len())
		iter := val.Iterate()
		defer iter.Done()
		var item starlark.Value
		for iter.Next(&item) {
			gv, err := ToGo(item)
			if err != nil {
				return nil, err
			}
			result = append(result, gv)
		}
		return result, nil

	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil

	case *starlarkstruct.Struct:
		result := make(map[string]any)
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				return nil, err
			}
			gv, err := ToGo(attr)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			result[name] = gv
		}
		return result, nil

	default:
		return val.String(), nil
	}
}

// IsDispatchTable reports whether v is a non-empty dict whose values are all
// callable, the Starlark shape of a multimethod.
func IsDispatchTable(v starlark.Value) bool {
	d, ok := v.(*starlark.Dict)
	if !ok || d.Len() == 0 {
		return false
	}
	for _, item := range d.Items() {
		if _, ok := item[1].(starlark.Callable); !ok {
			return false
		}
	}
	return true
}

// IsRecord reports whether v is a plain data record: a dict that is not a
// dispatch table, or a struct.
func IsRecord(v starlark.Value) bool {
	switch v.(type) {
	case *starlarkstruct.Struct:
		return true
	case *starlark.Dict:
		return !IsDispatchTable(v)
	default:
		return false
	}
}
