package pipeline

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shiptrack/gateway/internal/config"
)

// LogEntry is a structured log record appended by a stage.
type LogEntry struct {
	Time    time.Time              `json:"time"`
	Stage   string                 `json:"stage"`
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// Context is the mutable per-request state threaded through every stage.
// It is owned exclusively by one pipeline invocation and never outlives
// its request.
type Context struct {
	// Request is the inbound message, read-only after creation.
	Request *Request

	// Route is the resolved route configuration.
	Route *config.Route

	principal  *Principal
	metadata   map[string]interface{}
	response   *Response
	logEntries []LogEntry
}

// NewContext creates a Context for one inbound request. Request metadata
// (request ID, client IP, size, start time) is seeded immediately.
func NewContext(r *http.Request, route *config.Route) (*Context, error) {
	req, err := NewRequest(r)
	if err != nil {
		return nil, err
	}

	c := &Context{
		Request:  req,
		Route:    route,
		metadata: make(map[string]interface{}),
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.metadata["request_id"] = requestID
	c.metadata["client_ip"] = req.ClientIP()
	c.metadata["request_size"] = req.ContentLength
	c.metadata["received_at"] = time.Now()

	return c, nil
}

// RequestID returns the request's correlation ID.
func (c *Context) RequestID() string {
	id, _ := c.metadata["request_id"].(string)
	return id
}

// Principal returns the resolved caller identity, or nil before
// authentication succeeds.
func (c *Context) Principal() *Principal {
	return c.principal
}

// SetPrincipal records the resolved identity. The first write wins;
// later calls are ignored.
func (c *Context) SetPrincipal(p *Principal) {
	if c.principal == nil {
		c.principal = p
	}
}

// Meta returns a request-scoped observation.
func (c *Context) Meta(key string) (interface{}, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// SetMeta appends a request-scoped observation. Existing keys are not
// overwritten; metadata is append-only during processing.
func (c *Context) SetMeta(key string, value interface{}) {
	if _, exists := c.metadata[key]; !exists {
		c.metadata[key] = value
	}
}

// Metadata returns a copy of all request-scoped observations.
func (c *Context) Metadata() map[string]interface{} {
	out := make(map[string]interface{}, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// Response returns the terminal response, or nil if none was set.
func (c *Context) Response() *Response {
	return c.response
}

// Terminate sets the terminal response. The first terminal response
// wins; a stage cannot overwrite another stage's decision.
func (c *Context) Terminate(resp *Response) {
	if c.response == nil {
		c.response = resp
	}
}

// SetResponse replaces the current response. Used by the transformer,
// which rewrites an existing response rather than terminating the chain.
func (c *Context) SetResponse(resp *Response) {
	c.response = resp
}

// Terminated reports whether a terminal response has been set.
func (c *Context) Terminated() bool {
	return c.response != nil
}

// AppendLog appends a structured log record to the context.
func (c *Context) AppendLog(stage, level, message string, fields map[string]interface{}) {
	c.logEntries = append(c.logEntries, LogEntry{
		Time:    time.Now(),
		Stage:   stage,
		Level:   level,
		Message: message,
		Fields:  fields,
	})
}

// LogEntries returns the ordered log records emitted so far.
func (c *Context) LogEntries() []LogEntry {
	return c.logEntries
}
