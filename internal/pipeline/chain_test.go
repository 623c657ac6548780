package pipeline

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiptrack/gateway/internal/config"
)

// stubStage counts invocations and optionally terminates or panics.
type stubStage struct {
	name      string
	priority  int
	skip      bool
	calls     int
	terminate *Response
	panicWith interface{}
	ret       bool
}

func (s *stubStage) Name() string            { return s.name }
func (s *stubStage) Priority() int           { return s.priority }
func (s *stubStage) ShouldRun(*Context) bool { return !s.skip }

func (s *stubStage) Handle(_ context.Context, c *Context) bool {
	s.calls++
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	if s.terminate != nil {
		c.Terminate(s.terminate)
		return false
	}
	return s.ret
}

func chainContext(t *testing.T) *Context {
	t.Helper()
	c, err := NewContext(httptest.NewRequest("GET", "/api/shipments", nil),
		&config.Route{Path: "/api/shipments"})
	require.NoError(t, err)
	return c
}

func TestChain_OrdersByPriority(t *testing.T) {
	var order []string
	mk := func(name string, prio int) Stage {
		return &orderedStage{name: name, priority: prio, order: &order}
	}

	ch := NewChain([]Stage{
		mk("transform", PriorityTransform),
		mk("ratelimit", PriorityRateLimit),
		mk("validate", PriorityValidate),
		mk("auth", PriorityAuth),
	})

	ch.Execute(context.Background(), chainContext(t))

	assert.Equal(t, []string{"ratelimit", "auth", "validate", "transform"}, order)
}

type orderedStage struct {
	name     string
	priority int
	order    *[]string
}

func (s *orderedStage) Name() string            { return s.name }
func (s *orderedStage) Priority() int           { return s.priority }
func (s *orderedStage) ShouldRun(*Context) bool { return true }
func (s *orderedStage) Handle(_ context.Context, _ *Context) bool {
	*s.order = append(*s.order, s.name)
	return true
}

func TestChain_ShortCircuit(t *testing.T) {
	limiter := &stubStage{
		name:      "ratelimit",
		priority:  PriorityRateLimit,
		terminate: NewErrorResponse(CodeRateLimitExceeded, "rate limit exceeded", nil),
	}
	auth := &stubStage{name: "auth", priority: PriorityAuth, ret: true}
	validate := &stubStage{name: "validate", priority: PriorityValidate, ret: true}
	transform := &stubStage{name: "transform", priority: PriorityTransform, ret: true}

	ch := NewChain([]Stage{limiter, auth, validate, transform})
	c := chainContext(t)
	ch.Execute(context.Background(), c)

	// Downstream stages never execute once the limiter terminates.
	assert.Equal(t, 1, limiter.calls)
	assert.Equal(t, 0, auth.calls)
	assert.Equal(t, 0, validate.calls)
	assert.Equal(t, 0, transform.calls)

	require.True(t, c.Terminated())
	assert.Equal(t, 429, c.Response().Status)
}

func TestChain_SkipsStagesThatShouldNotRun(t *testing.T) {
	skipped := &stubStage{name: "ratelimit", priority: PriorityRateLimit, skip: true}
	ran := &stubStage{name: "auth", priority: PriorityAuth, ret: true}

	ch := NewChain([]Stage{skipped, ran})
	ch.Execute(context.Background(), chainContext(t))

	assert.Equal(t, 0, skipped.calls)
	assert.Equal(t, 1, ran.calls)
}

func TestChain_StopsWhenStageReturnsFalse(t *testing.T) {
	first := &stubStage{name: "auth", priority: PriorityAuth, ret: false}
	second := &stubStage{name: "validate", priority: PriorityValidate, ret: true}

	ch := NewChain([]Stage{first, second})
	ch.Execute(context.Background(), chainContext(t))

	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestChain_RecoversStagePanic(t *testing.T) {
	panicking := &stubStage{name: "auth", priority: PriorityAuth, panicWith: "boom"}
	downstream := &stubStage{name: "validate", priority: PriorityValidate, ret: true}

	ch := NewChain([]Stage{panicking, downstream})
	c := chainContext(t)
	ch.Execute(context.Background(), c)

	assert.Equal(t, 0, downstream.calls)
	require.True(t, c.Terminated())
	assert.Equal(t, 503, c.Response().Status)

	// Partial state is still inspectable after the fault.
	require.NotEmpty(t, c.LogEntries())
	assert.Equal(t, "auth", c.LogEntries()[0].Stage)
}

func TestChain_PanicInValidateUsesValidationCode(t *testing.T) {
	panicking := &stubStage{name: "validate", priority: PriorityValidate, panicWith: "boom"}

	ch := NewChain([]Stage{panicking})
	c := chainContext(t)
	ch.Execute(context.Background(), c)

	require.True(t, c.Terminated())
	var body ErrorBody
	require.NoError(t, json.Unmarshal(c.Response().Body, &body))
	assert.Equal(t, CodeValidationServiceError, body.Code)
}
