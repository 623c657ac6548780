package pipeline

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Request is the read-only view of the inbound message carried by the
// Context. The body is read once at construction; downstream consumers
// see the same bytes.
type Request struct {
	Method        string
	Path          string
	Header        http.Header
	Query         url.Values
	Body          []byte
	ContentType   string
	ContentLength int64
	RemoteAddr    string

	parsedBody map[string]interface{}
	parseTried bool
}

// NewRequest builds a Request from an http.Request, consuming the body.
// The original request's body is replaced so the server layer can still
// pass it through untouched.
func NewRequest(r *http.Request) (*Request, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	contentType := r.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}

	length := r.ContentLength
	if length < 0 || (length == 0 && len(body) > 0) {
		length = int64(len(body))
	}

	return &Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Header:        r.Header.Clone(),
		Query:         r.URL.Query(),
		Body:          body,
		ContentType:   contentType,
		ContentLength: length,
		RemoteAddr:    r.RemoteAddr,
	}, nil
}

// ParsedBody returns the body parsed as a JSON object or urlencoded form.
// Returns nil if the body is empty or not structured data. Parsing
// happens once; the result is cached.
func (r *Request) ParsedBody() map[string]interface{} {
	if r.parseTried {
		return r.parsedBody
	}
	r.parseTried = true

	if len(r.Body) == 0 {
		return nil
	}

	switch r.ContentType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(r.Body))
		if err != nil {
			return nil
		}
		parsed := make(map[string]interface{}, len(values))
		for k, v := range values {
			if len(v) == 1 {
				parsed[k] = v[0]
			} else {
				parsed[k] = v
			}
		}
		r.parsedBody = parsed
	default:
		var parsed map[string]interface{}
		if err := json.Unmarshal(r.Body, &parsed); err != nil {
			return nil
		}
		r.parsedBody = parsed
	}

	return r.parsedBody
}

// BodyField returns a top-level scalar field from the parsed body as a
// string. Numbers and booleans are stringified so rules and identifiers
// see the same value regardless of the JSON type; structured values are
// treated as absent.
func (r *Request) BodyField(name string) string {
	body := r.ParsedBody()
	if body == nil {
		return ""
	}
	switch v := body[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// ClientIP extracts the client IP, honoring the usual proxy headers.
func (r *Request) ClientIP() string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	ip = strings.TrimPrefix(ip, "[")
	ip = strings.TrimSuffix(ip, "]")
	return ip
}
