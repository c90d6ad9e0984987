package security

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strings"
)

// Document is a loosely-typed SecurityConfig keyed by field name. A partial
// configuration is a Document holding any subset of the fields.
type Document map[string]any

// Get returns the value at a dot-separated field path.
func (d Document) Get(field string) (any, bool) {
	parts := splitField(field)
	if len(parts) == 0 {
		return nil, false
	}

	current := any(map[string]any(d))
	for _, part := range parts {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Has reports whether the field is present, even with a nil value.
func (d Document) Has(field string) bool {
	_, ok := d.Get(field)
	return ok
}

// Set stores a value at a dot-separated field path, creating intermediate
// groups as needed. A non-map value blocking the path is replaced.
func (d Document) Set(field string, value any) {
	parts := splitField(field)
	if len(parts) == 0 {
		return
	}

	current := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(current[part])
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// Delete removes the value at a field path. Empty groups are left in place.
func (d Document) Delete(field string) {
	parts := splitField(field)
	if len(parts) == 0 {
		return
	}

	current := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(current[part])
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}

// Fields returns the sorted leaf field paths present in the document.
func (d Document) Fields() []string {
	var fields []string
	collectFields("", map[string]any(d), &fields)
	sort.Strings(fields)
	return fields
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneMap(d))
}

// Normalized returns a deep copy with numbers and string lists in canonical
// form. See Normalize.
func (d Document) Normalized() Document {
	if d == nil {
		return nil
	}
	return Document(Normalize(map[string]any(d)).(map[string]any))
}

// Equal reports whether two documents hold the same normalized values.
func (d Document) Equal(other Document) bool {
	return reflect.DeepEqual(d.Normalized(), other.Normalized())
}

// Normalize converts decoded values into canonical Go forms so that values
// read back from JSON, TOML, YAML or SQL compare equal to the originals:
// integral numbers become int, other numbers float64, lists of strings
// []string, and nested groups map[string]any. Anything else is returned as is.
func Normalize(v any) any {
	switch val := v.(type) {
	case int:
		return val
	case int8:
		return int(val)
	case int16:
		return int(val)
	case int32:
		return int(val)
	case int64:
		return int(val)
	case uint:
		return int(val)
	case uint8:
		return int(val)
	case uint16:
		return int(val)
	case uint32:
		return int(val)
	case uint64:
		return int(val)
	case float32:
		return normalizeFloat(float64(val))
	case float64:
		return normalizeFloat(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		if f, err := val.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return val.String()
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case []any:
		strs := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				out := make([]any, len(val))
				for i, it := range val {
					out[i] = Normalize(it)
				}
				return out
			}
			strs = append(strs, s)
		}
		return strs
	case Document:
		return Normalize(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	default:
		return v
	}
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		return int(f)
	}
	return f
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

func collectFields(prefix string, m map[string]any, out *[]string) {
	for key, val := range m {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := asMap(val); ok && len(nested) > 0 {
			collectFields(path, nested, out)
			continue
		}
		*out = append(*out, path)
	}
}

func splitField(field string) []string {
	return strings.FieldsFunc(field, func(r rune) bool { return r == '.' })
}

func cloneMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for key, val := range src {
		dst[key] = cloneValue(val)
	}
	return dst
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case Document:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
