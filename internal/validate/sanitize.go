package validate

import "html"

// Sanitize returns a deep copy of the value with every string
// HTML-escaped, recursing through maps and slices. Non-string scalars
// pass through unchanged.
func Sanitize(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return html.EscapeString(v)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = Sanitize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = Sanitize(item)
		}
		return out
	default:
		return v
	}
}
