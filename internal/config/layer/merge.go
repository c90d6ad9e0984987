package layer

import (
	"reflect"
	"sort"
	"strings"
)

// DeepMerge recursively merges src into dst. Maps merge key by key; any other
// value in src replaces the one in dst.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = cloneValue(srcVal)
	}
	return dst
}

// GetByPath retrieves a value from a nested map using a dot-separated path.
func GetByPath(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}

	current := any(data)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

// SetByPath sets a value in a nested map, creating intermediate maps and
// replacing scalars that block the path.
func SetByPath(data map[string]any, path string, value any) {
	if data == nil || path == "" {
		return
	}

	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// DeleteByPath removes a value and prunes parent maps left empty. It
// reports whether the value existed.
func DeleteByPath(data map[string]any, path string) bool {
	if data == nil || path == "" {
		return false
	}
	return deleteParts(data, strings.Split(path, "."))
}

func deleteParts(m map[string]any, parts []string) bool {
	key := parts[0]
	if len(parts) == 1 {
		if _, ok := m[key]; !ok {
			return false
		}
		delete(m, key)
		return true
	}

	child, ok := m[key].(map[string]any)
	if !ok {
		return false
	}
	removed := deleteParts(child, parts[1:])
	if removed && len(child) == 0 {
		delete(m, key)
	}
	return removed
}

// FlattenMap flattens a nested map into dot-separated keys.
func FlattenMap(data map[string]any) map[string]any {
	result := make(map[string]any)
	flatten(data, "", result)
	return result
}

func flatten(data map[string]any, prefix string, result map[string]any) {
	for key, val := range data {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok && len(nested) > 0 {
			flatten(nested, full, result)
			continue
		}
		result[full] = val
	}
}

// DiffMaps returns the sorted leaf paths added, modified and removed going
// from old to new.
func DiffMaps(old, new map[string]any) (added, modified, removed []string) {
	oldFlat := FlattenMap(old)
	newFlat := FlattenMap(new)

	for path, newVal := range newFlat {
		oldVal, ok := oldFlat[path]
		switch {
		case !ok:
			added = append(added, path)
		case !reflect.DeepEqual(oldVal, newVal):
			modified = append(modified, path)
		}
	}
	for path := range oldFlat {
		if _, ok := newFlat[path]; !ok {
			removed = append(removed, path)
		}
	}

	sort.Strings(added)
	sort.Strings(modified)
	sort.Strings(removed)
	return added, modified, removed
}
