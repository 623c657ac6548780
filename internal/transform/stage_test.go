package transform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiptrack/gateway/internal/config"
	"github.com/shiptrack/gateway/internal/pipeline"
)

func newContext(t *testing.T, body string, cfg *config.TransformConfig) *pipeline.Context {
	t.Helper()

	r := httptest.NewRequest("POST", "/api/shipments", strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}

	c, err := pipeline.NewContext(r, &config.Route{
		Path:      "/api/shipments",
		Transform: cfg,
	})
	require.NoError(t, err)
	return c
}

func TestStage_ShouldRun(t *testing.T) {
	stage := NewStage()

	c := newContext(t, "", &config.TransformConfig{TransformRequest: true})
	assert.True(t, stage.ShouldRun(c))

	c = newContext(t, "", &config.TransformConfig{TransformResponse: true})
	assert.False(t, stage.ShouldRun(c))

	c = newContext(t, "", nil)
	assert.False(t, stage.ShouldRun(c))
}

func TestStage_TransformRequest(t *testing.T) {
	stage := NewStage()
	cfg := &config.TransformConfig{
		TransformRequest: true,
		FieldMappings:    map[string]string{"reference": "shipmentRef"},
		Transformers:     []string{"strip_sensitive"},
		NormalizeFields:  true,
		AddMetadata:      true,
	}

	c := newContext(t, `{"shipmentRef":"SHP-1","carrierCode":"dhl","password":"x"}`, cfg)
	require.True(t, stage.Handle(context.Background(), c))

	v, ok := c.Meta(MetaTransformedBody)
	require.True(t, ok)
	body := v.(map[string]interface{})

	assert.Equal(t, "SHP-1", body["reference"])
	assert.Equal(t, "dhl", body["carrier_code"])
	_, hasPassword := body["password"]
	assert.False(t, hasPassword)

	meta, ok := body["_metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, meta["request_id"])
	assert.NotEmpty(t, meta["client_ip"])
	assert.NotEmpty(t, meta["processed_at"])
}

func TestStage_MetadataDoesNotLeakIntoSanitizedBody(t *testing.T) {
	stage := NewStage()
	cfg := &config.TransformConfig{
		TransformRequest: true,
		AddMetadata:      true,
	}

	c := newContext(t, `{"carrier":"dhl"}`, cfg)
	sanitized := map[string]interface{}{"carrier": "dhl"}
	c.SetMeta("sanitized_body", sanitized)

	require.True(t, stage.Handle(context.Background(), c))

	transformed, ok := c.Meta(MetaTransformedBody)
	require.True(t, ok)
	assert.Contains(t, transformed.(map[string]interface{}), "_metadata")

	// The sanitized payload recorded earlier stays as validation left it.
	assert.NotContains(t, sanitized, "_metadata")
}

func TestStage_NoBodyPassesThrough(t *testing.T) {
	stage := NewStage()
	c := newContext(t, "", &config.TransformConfig{TransformRequest: true})

	require.True(t, stage.Handle(context.Background(), c))
	_, ok := c.Meta(MetaTransformedBody)
	assert.False(t, ok)
	assert.False(t, c.Terminated())
}

func TestStage_UnknownTransformerIgnored(t *testing.T) {
	stage := NewStage()
	cfg := &config.TransformConfig{
		TransformRequest: true,
		Transformers:     []string{"does_not_exist", "snake_case"},
	}

	c := newContext(t, `{"shipmentRef":"SHP-1"}`, cfg)
	require.True(t, stage.Handle(context.Background(), c))

	v, ok := c.Meta(MetaTransformedBody)
	require.True(t, ok)
	assert.Equal(t, "SHP-1", v.(map[string]interface{})["shipment_ref"])
}

func TestStage_TransformResponse(t *testing.T) {
	stage := NewStage()
	cfg := &config.TransformConfig{
		TransformResponse: true,
		FieldMappings:     map[string]string{"reference": "shipment_ref"},
		DataFormat:        config.FormatJSON,
	}

	c := newContext(t, "", cfg)
	c.SetResponse(pipeline.NewJSONResponse(http.StatusOK, map[string]interface{}{
		"reference": "SHP-1",
		"status":    "delivered",
	}))

	stage.TransformResponse(c)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(c.Response().Body, &body))

	// The reversed mapping restores the external field name.
	assert.Equal(t, "SHP-1", body["shipment_ref"])
	assert.Equal(t, "delivered", body["status"])
}

func TestStage_TransformResponse_XML(t *testing.T) {
	stage := NewStage()
	cfg := &config.TransformConfig{
		TransformResponse: true,
		DataFormat:        config.FormatXML,
	}

	c := newContext(t, "", cfg)
	c.SetResponse(pipeline.NewJSONResponse(http.StatusOK, map[string]interface{}{
		"status": "delivered",
	}))

	stage.TransformResponse(c)

	resp := c.Response()
	assert.Equal(t, "application/xml", resp.ContentType)
	assert.Contains(t, string(resp.Body), "<status>delivered</status>")
}

func TestStage_TransformResponse_CSV(t *testing.T) {
	stage := NewStage()
	cfg := &config.TransformConfig{
		TransformResponse: true,
		DataFormat:        config.FormatCSV,
	}

	c := newContext(t, "", cfg)
	c.SetResponse(pipeline.NewJSONResponse(http.StatusOK, map[string]interface{}{
		"carrier":   "dhl",
		"reference": "SHP-1",
	}))

	stage.TransformResponse(c)

	resp := c.Response()
	assert.Equal(t, "text/csv", resp.ContentType)
	lines := strings.Split(strings.TrimSpace(string(resp.Body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "carrier,reference", lines[0])
	assert.Equal(t, "dhl,SHP-1", lines[1])
}

func TestStage_TransformResponse_UnstructuredUntouched(t *testing.T) {
	stage := NewStage()
	cfg := &config.TransformConfig{
		TransformResponse: true,
		DataFormat:        config.FormatJSON,
	}

	c := newContext(t, "", cfg)
	c.SetResponse(&pipeline.Response{
		Status:      http.StatusOK,
		Header:      make(http.Header),
		Body:        []byte("plain text, not json"),
		ContentType: "text/plain",
	})

	stage.TransformResponse(c)

	assert.Equal(t, "plain text, not json", string(c.Response().Body))
	assert.Equal(t, "text/plain", c.Response().ContentType)
}

func TestStage_TransformResponse_Disabled(t *testing.T) {
	stage := NewStage()
	c := newContext(t, "", &config.TransformConfig{TransformResponse: false})
	c.SetResponse(pipeline.NewJSONResponse(http.StatusOK, map[string]interface{}{"a": 1}))

	stage.TransformResponse(c)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(c.Response().Body, &body))
	assert.Equal(t, float64(1), body["a"])
}
