// Package starlark provides the Starlark runtime used by script engines:
// pooled threads, value conversion and the builtins scripts see.
package starlark

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// EngineInfo describes the engine running a script.
// Exposed as the "engine" global in Starlark execution.
type EngineInfo struct {
	Name     string
	MaxDepth int
	Options  map[string]string
}

// ToStarlark converts EngineInfo to a Starlark struct value.
func (e *EngineInfo) ToStarlark() starlark.Value {
	opts := starlark.NewDict(len(e.Options))
	for k, v := range e.Options {
		_ = opts.SetKey(starlark.String(k), starlark.String(v))
	}
	opts.Freeze()
	return starlarkstruct.FromStringDict(starlark.String("engine"), starlark.StringDict{
		"name":      starlark.String(e.Name),
		"max_depth": starlark.MakeInt(e.MaxDepth),
		"options":   opts,
	})
}

// ToGo converts a Starlark value back to a Go value.
// Returns: string, int64, float64, bool, []any, map[string]any, or nil.
// Structs convert to map[string]any keyed by field name.
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

	case *starlark.List, starlark.Tuple:
		seq := val.(starlark.Indexable)
		result := make([]any, seq.Len())
		for i := range result {
			gv, err := ToGo(seq.Index(i))
			if err != nil {
				return nil, fmt.Errorf("%s index %d: %w", val.Type(), i, err)
			}
			result[i] = gv
		}
		return result, nil

	case *starlark.Dict:
		result := make(map[string]any)
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %T", item[0])
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
				return nil, fmt.Errorf("struct field %q: %w", name, err)
			}
			gv, err := ToGo(attr)
			if err != nil {
				return nil, fmt.Errorf("struct field %q: %w", name, err)
			}
			result[name] = gv
		}
		return result, nil

	default:
		// Try to get a string representation
		return val.String(), nil
	}
}
