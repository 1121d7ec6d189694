package csf

// CombineParameters deep-merges parameter maps left to right. Nested maps
// merge key by key; any other value, arrays included, replaces what came
// before. nil maps are skipped.
func CombineParameters(sets ...Parameters) Parameters {
	result := Parameters{}
	for _, set := range sets {
		mergeInto(result, set)
	}
	return result
}

func mergeInto(dst map[string]any, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := asMap(value)
		if !srcIsMap {
			dst[key] = value
			continue
		}
		dstMap, dstIsMap := asMap(dst[key])
		if !dstIsMap {
			dstMap = map[string]any{}
		} else {
			dstMap = copyMap(dstMap)
		}
		mergeInto(dstMap, srcMap)
		dst[key] = dstMap
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Parameters:
		return map[string]any(m), true
	case Args:
		return map[string]any(m), true
	}
	return nil, false
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
