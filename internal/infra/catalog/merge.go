package catalog

// paramSchemaKeys are merged key by key instead of replaced.
var paramSchemaKeys = map[string]struct{}{
	"params_schema": {},
	"param_schema":  {},
}

// MergeOverrides applies overrides to a base table and returns a new table.
//
// Each override matches an existing entry by "path", then by "name". A match
// has its top-level fields replaced and its parameter schema deep-merged; an
// unmatched override is appended. Non-mapping overrides are skipped. Neither
// input is modified.
func MergeOverrides(base []map[string]any, overrides []any) []map[string]any {
	merged := make([]map[string]any, 0, len(base)+len(overrides))
	for _, entry := range base {
		merged = append(merged, cloneMap(entry))
	}

	byPath := make(map[string]int, len(merged))
	byName := make(map[string]int, len(merged))
	index := func(i int) {
		if path := stringField(merged[i], "path"); path != "" {
			if _, seen := byPath[path]; !seen {
				byPath[path] = i
			}
		}
		if name := stringField(merged[i], "name"); name != "" {
			if _, seen := byName[name]; !seen {
				byName[name] = i
			}
		}
	}
	for i := range merged {
		index(i)
	}

	for _, raw := range overrides {
		override, ok := asMap(raw)
		if !ok {
			continue
		}
		target, found := -1, false
		if path := stringField(override, "path"); path != "" {
			target, found = byPath[path]
		}
		if !found {
			if name := stringField(override, "name"); name != "" {
				target, found = byName[name]
			}
		}
		if !found {
			merged = append(merged, cloneMap(override))
			index(len(merged) - 1)
			continue
		}
		applyOverride(merged[target], override)
		index(target)
	}
	return merged
}

func applyOverride(dst, src map[string]any) {
	for key, value := range src {
		if _, deep := paramSchemaKeys[key]; deep {
			existing, okDst := asMap(dst[key])
			incoming, okSrc := asMap(value)
			if okDst && okSrc {
				dst[key] = deepMerge(existing, incoming)
				continue
			}
		}
		dst[key] = cloneValue(value)
	}
}

// deepMerge merges nested mappings key by key; every other value replaces.
func deepMerge(dst, src map[string]any) map[string]any {
	out := cloneMap(dst)
	for key, value := range src {
		existing, okDst := asMap(out[key])
		incoming, okSrc := asMap(value)
		if okDst && okSrc {
			out[key] = deepMerge(existing, incoming)
			continue
		}
		out[key] = cloneValue(value)
	}
	return out
}

func asMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			name, ok := key.(string)
			if !ok {
				return nil, false
			}
			out[name] = item
		}
		return out, true
	default:
		return nil, false
	}
}

func stringField(entry map[string]any, key string) string {
	value, _ := entry[key].(string)
	return value
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	if m, ok := asMap(value); ok {
		return cloneMap(m)
	}
	if list, ok := value.([]any); ok {
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = cloneValue(item)
		}
		return out
	}
	return value
}
