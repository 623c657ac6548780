package transform

import (
	"math"
	"strings"
	"time"
	"unicode"
)

// Transformer is a named payload transformation applied in route
// configuration order.
type Transformer func(map[string]interface{}) map[string]interface{}

// builtinTransformers is the registry of named transformers available
// to route configuration.
var builtinTransformers = map[string]Transformer{
	"snake_case":       SnakeCaseKeys,
	"parse_timestamps": ParseTimestamps,
	"round_currency":   RoundCurrency,
	"strip_sensitive":  StripSensitive,
}

// Lookup returns the named transformer, or nil when unknown.
func Lookup(name string) Transformer {
	return builtinTransformers[name]
}

// timestampLayouts are the accepted inbound timestamp formats, tried in
// order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// sensitiveKeys are removed from payloads by strip_sensitive.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"secret":        {},
	"token":         {},
	"api_key":       {},
	"authorization": {},
	"credit_card":   {},
}

// SnakeCaseKeys rewrites every map key to snake_case, recursively.
func SnakeCaseKeys(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		out[toSnakeCase(key)] = snakeCaseValue(value)
	}
	return out
}

func snakeCaseValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return SnakeCaseKeys(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = snakeCaseValue(item)
		}
		return out
	default:
		return v
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)

	prevLower := false
	for _, r := range s {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}

	return b.String()
}

// ParseTimestamps normalizes string values in fields whose name ends in
// _at, _date, or _time to RFC 3339 UTC, recursively. Unparseable values
// are left alone.
func ParseTimestamps(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		out[key] = parseTimestampValue(key, value)
	}
	return out
}

func parseTimestampValue(key string, value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return ParseTimestamps(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = parseTimestampValue(key, item)
		}
		return out
	case string:
		if !isTimestampField(key) {
			return v
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
		return v
	default:
		return v
	}
}

func isTimestampField(key string) bool {
	return strings.HasSuffix(key, "_at") ||
		strings.HasSuffix(key, "_date") ||
		strings.HasSuffix(key, "_time")
}

// RoundCurrency rounds float values in fields whose name suggests money
// (price, amount, cost, fee, total suffixes) to two decimal places,
// recursively.
func RoundCurrency(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		out[key] = roundCurrencyValue(key, value)
	}
	return out
}

func roundCurrencyValue(key string, value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return RoundCurrency(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = roundCurrencyValue(key, item)
		}
		return out
	case float64:
		if !isCurrencyField(key) {
			return v
		}
		return math.Round(v*100) / 100
	default:
		return v
	}
}

func isCurrencyField(key string) bool {
	for _, suffix := range []string{"price", "amount", "cost", "fee", "total"} {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// StripSensitive removes credential-bearing fields from the payload,
// recursively.
func StripSensitive(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		if _, sensitive := sensitiveKeys[strings.ToLower(key)]; sensitive {
			continue
		}
		out[key] = stripSensitiveValue(value)
	}
	return out
}

func stripSensitiveValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return StripSensitive(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = stripSensitiveValue(item)
		}
		return out
	default:
		return v
	}
}
