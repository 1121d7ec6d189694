// Package store holds the preview's story, args and globals state.
package store

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/grovetools/storybook/pkg/csf"
)

// Clone deep-copies maps and slices so callers never alias store state.
func Clone[M ~map[string]any](m M) M {
	if m == nil {
		return nil
	}
	out := make(M, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Clone(t)
	case csf.Args:
		return Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case csf.Args:
		return map[string]any(t), true
	case csf.Globals:
		return map[string]any(t), true
	}
	return nil, false
}

// combine merges update into value recursively: objects merge key by key,
// arrays overlay position by position skipping holes, anything else is
// replaced. Undefined removes a key.
func combine(value, update any) any {
	if va, ok := value.([]any); ok {
		if ua, ok := update.([]any); ok {
			out := append([]any(nil), va...)
			for i, u := range ua {
				if csf.IsUndefined(u) {
					continue
				}
				var prev any = csf.Undefined
				if i < len(va) {
					prev = va[i]
				}
				combined := combine(prev, u)
				if i < len(out) {
					out[i] = combined
				} else {
					for len(out) < i {
						out = append(out, csf.Undefined)
					}
					out = append(out, combined)
				}
			}
			kept := out[:0]
			for _, item := range out {
				if !csf.IsUndefined(item) {
					kept = append(kept, item)
				}
			}
			return kept
		}
	}
	if vo, ok := asObject(value); ok {
		if uo, ok := asObject(update); ok {
			out := make(map[string]any, len(vo)+len(uo))
			for k, v := range vo {
				out[k] = v
			}
			for k, u := range uo {
				combined := combine(vo[k], u)
				if csf.IsUndefined(combined) {
					delete(out, k)
					continue
				}
				out[k] = combined
			}
			return out
		}
	}
	return update
}

type deepEqualMarker struct{}

// deeplyEqual is what deepDiff returns when nothing changed.
var deeplyEqual any = deepEqualMarker{}

// deepDiff returns the part of update that differs from value, in a form
// combine can re-apply on top of value.
func deepDiff(value, update any) any {
	if reflect.DeepEqual(value, update) {
		return deeplyEqual
	}
	if va, ok := value.([]any); ok {
		if ua, ok := update.([]any); ok {
			n := len(ua)
			if len(va) > n {
				n = len(va)
			}
			res := make([]any, n)
			for i := range res {
				switch {
				case i >= len(ua):
					res[i] = csf.Undefined
				case i >= len(va):
					res[i] = ua[i]
				default:
					d := deepDiff(va[i], ua[i])
					if d == deeplyEqual {
						d = csf.Undefined
					}
					res[i] = d
				}
			}
			return res
		}
	}
	if vo, ok := asObject(value); ok {
		if uo, ok := asObject(update); ok {
			res := map[string]any{}
			for k, v := range vo {
				u, present := uo[k]
				if !present {
					res[k] = csf.Undefined
					continue
				}
				if d := deepDiff(v, u); d != deeplyEqual {
					res[k] = d
				}
			}
			for k, u := range uo {
				if _, present := vo[k]; !present {
					res[k] = u
				}
			}
			return res
		}
	}
	return update
}

// incompatible marks a persisted value that cannot be mapped to its type.
type incompatible struct{}

// mapArgsToTypes coerces persisted values (usually strings from a URL) to
// their declared types and drops args that are not declared.
func mapArgsToTypes(args csf.Args, argTypes csf.ArgTypes) csf.Args {
	out := csf.Args{}
	for key, value := range args {
		at, ok := argTypes[key]
		if !ok {
			continue
		}
		mapped := mapToType(value, at.Type)
		if _, bad := mapped.(incompatible); bad {
			continue
		}
		out[key] = mapped
	}
	return out
}

func mapToType(arg any, t *csf.SBType) any {
	if t == nil || csf.IsUndefined(arg) || arg == nil {
		return arg
	}
	switch t.Name {
	case csf.TypeString:
		switch v := arg.(type) {
		case string:
			return v
		case float64, int, bool:
			return fmt.Sprint(v)
		}
		return arg
	case csf.TypeNumber:
		if s, ok := arg.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		return arg
	case csf.TypeBoolean:
		if s, ok := arg.(string); ok {
			switch s {
			case "true":
				return true
			case "false":
				return false
			}
		}
		return arg
	case csf.TypeArray:
		items, ok := arg.([]any)
		if !ok {
			return arg
		}
		elem, _ := t.Value.(*csf.SBType)
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = mapToType(item, elem)
			if _, bad := out[i].(incompatible); bad {
				out[i] = csf.Undefined
			}
		}
		return out
	case csf.TypeObject:
		obj, ok := asObject(arg)
		if !ok {
			return arg
		}
		fields, _ := t.Value.(map[string]*csf.SBType)
		out := make(map[string]any, len(obj))
		for k, v := range obj {
			var ft *csf.SBType
			if fields != nil {
				ft = fields[k]
			}
			mapped := mapToType(v, ft)
			if _, bad := mapped.(incompatible); bad {
				continue
			}
			out[k] = mapped
		}
		return out
	case csf.TypeFunction:
		return incompatible{}
	default:
		return arg
	}
}

// validateOptions drops values that are not among an arg's declared
// options. It returns the names of the dropped args.
func validateOptions(args csf.Args, argTypes csf.ArgTypes) (csf.Args, []string) {
	out := csf.Args{}
	var dropped []string
	for key, value := range args {
		at, ok := argTypes[key]
		if !ok || len(at.Options) == 0 || csf.IsUndefined(value) {
			out[key] = value
			continue
		}
		if items, isArray := value.([]any); isArray {
			valid := true
			for _, item := range items {
				if !containsValue(at.Options, item) && !csf.IsUndefined(item) {
					valid = false
				}
			}
			if valid {
				out[key] = value
			} else {
				dropped = append(dropped, key)
			}
			continue
		}
		if containsValue(at.Options, value) {
			out[key] = value
		} else {
			dropped = append(dropped, key)
		}
	}
	return out, dropped
}

func containsValue(options []any, v any) bool {
	for _, o := range options {
		if reflect.DeepEqual(o, v) {
			return true
		}
		// JSON numbers decode as float64 while options may be ints.
		if fo, ok := toFloat(o); ok {
			if fv, ok := toFloat(v); ok && fo == fv {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
