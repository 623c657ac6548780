package transform

import "strings"

// GetPath retrieves the value at a dotted path such as
// "customer.address.city". The second return is false when any segment
// is missing or not traversable.
func GetPath(data map[string]interface{}, path string) (interface{}, bool) {
	segments := strings.Split(path, ".")

	var current interface{} = data
	for _, segment := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// SetPath sets the value at a dotted path, creating intermediate maps
// as needed. Existing non-map intermediates are replaced.
func SetPath(data map[string]interface{}, path string, value interface{}) {
	segments := strings.Split(path, ".")

	current := data
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[segment] = next
		}
		current = next
	}

	current[segments[len(segments)-1]] = value
}

// DeletePath removes the value at a dotted path. Missing segments are
// a no-op.
func DeletePath(data map[string]interface{}, path string) {
	segments := strings.Split(path, ".")

	current := data
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]interface{})
		if !ok {
			return
		}
		current = next
	}

	delete(current, segments[len(segments)-1])
}

// deepCopy returns a copy of the value with all nested maps and slices
// duplicated.
func deepCopy(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = deepCopy(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}

// ApplyMappings renames fields target←source over a copy of the data.
// A missing source leaves the target unset; the source field is removed
// once moved.
func ApplyMappings(data map[string]interface{}, mappings map[string]string) map[string]interface{} {
	result := deepCopy(data).(map[string]interface{})
	for target, source := range mappings {
		value, ok := GetPath(result, source)
		if !ok {
			continue
		}
		DeletePath(result, source)
		SetPath(result, target, value)
	}

	return result
}

// ReverseMappings swaps targets and sources so an outbound payload can
// be mapped back to the external field names.
func ReverseMappings(mappings map[string]string) map[string]string {
	reversed := make(map[string]string, len(mappings))
	for target, source := range mappings {
		reversed[source] = target
	}
	return reversed
}
