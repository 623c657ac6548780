package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Defaults.RateLimit.Limit)
	assert.Equal(t, 60*time.Second, cfg.Defaults.RateLimit.Window.Duration())
	assert.Equal(t, 10, cfg.Defaults.RateLimit.BurstLimit)
	assert.Equal(t, []string{"api_key", "jwt", "bearer"}, cfg.Defaults.Auth.Providers)
	assert.Equal(t, int64(10<<20), cfg.Defaults.Validation.MaxRequestSize)
	assert.Equal(t, 2*time.Second, cfg.Monitor.SlowRequestThreshold.Duration())
	assert.Equal(t, int64(10<<20), cfg.Monitor.HighMemoryThreshold)
}

func TestGatewayConfig_Normalize_RouteDefaults(t *testing.T) {
	cfg := &GatewayConfig{
		Routes: []*Route{
			{Path: "/api/shipments"},
			{
				Path:      "/api/invoices",
				RateLimit: &RateLimitConfig{Limit: 5},
			},
		},
	}

	cfg.Normalize()

	// Route without overrides inherits every default.
	rt := cfg.Routes[0]
	assert.Equal(t, 100, rt.RateLimit.Limit)
	assert.Equal(t, IdentifierIP, rt.RateLimit.Identifier)
	assert.True(t, rt.Validation.Enabled == false || rt.Validation.MaxRequestSize == 10<<20)

	// Partial override keeps the override and fills the rest.
	rt = cfg.Routes[1]
	assert.Equal(t, 5, rt.RateLimit.Limit)
	assert.Equal(t, 60*time.Second, rt.RateLimit.Window.Duration())
	assert.Equal(t, 10, rt.RateLimit.BurstLimit)
}

func TestGatewayConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *GatewayConfig
		wantErr string
	}{
		{
			name: "valid",
			cfg: &GatewayConfig{
				Routes: []*Route{{Path: "/api/shipments"}},
			},
		},
		{
			name: "missing path",
			cfg: &GatewayConfig{
				Routes: []*Route{{}},
			},
			wantErr: "path is required",
		},
		{
			name: "duplicate route",
			cfg: &GatewayConfig{
				Routes: []*Route{{Path: "/a"}, {Path: "/a"}},
			},
			wantErr: "duplicate route",
		},
		{
			name: "custom identifier without field",
			cfg: &GatewayConfig{
				Routes: []*Route{{
					Path:      "/a",
					RateLimit: &RateLimitConfig{Identifier: IdentifierCustom},
				}},
			},
			wantErr: "identifierField",
		},
		{
			name: "bad data format",
			cfg: &GatewayConfig{
				Routes: []*Route{{
					Path:      "/a",
					Transform: &TransformConfig{DataFormat: "yaml"},
				}},
			},
			wantErr: "unsupported data format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRoute_Matches(t *testing.T) {
	tests := []struct {
		name   string
		route  Route
		method string
		path   string
		want   bool
	}{
		{"exact path", Route{Path: "/api/shipments"}, "GET", "/api/shipments", true},
		{"exact mismatch", Route{Path: "/api/shipments"}, "GET", "/api/invoices", false},
		{"wildcard", Route{Path: "/api/*"}, "POST", "/api/shipments/42", true},
		{"method match", Route{Path: "/a", Methods: []string{"POST"}}, "POST", "/a", true},
		{"method case-insensitive", Route{Path: "/a", Methods: []string{"post"}}, "POST", "/a", true},
		{"method mismatch", Route{Path: "/a", Methods: []string{"POST"}}, "GET", "/a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.route.Matches(tt.method, tt.path))
		})
	}
}

func TestAuthConfig_RequiresAuthorization(t *testing.T) {
	assert.False(t, (&AuthConfig{}).RequiresAuthorization())
	assert.False(t, (*AuthConfig)(nil).RequiresAuthorization())
	assert.True(t, (&AuthConfig{Authorize: true}).RequiresAuthorization())
	assert.True(t, (&AuthConfig{Permissions: []string{"shipments.read"}}).RequiresAuthorization())
	assert.True(t, (&AuthConfig{Roles: []string{"ops"}}).RequiresAuthorization())
	assert.True(t, (&AuthConfig{Scopes: []string{"tracking"}}).RequiresAuthorization())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")

	yaml := `
server:
  port: 9090
routes:
  - path: /api/shipments
    methods: [GET, POST]
    rateLimit:
      limit: 20
      window: 30s
    auth:
      required: true
      authorize: true
      permissions: [shipments.read]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	require.Len(t, cfg.Routes, 1)
	rt := cfg.Routes[0]
	assert.Equal(t, 20, rt.RateLimit.Limit)
	assert.Equal(t, 30*time.Second, rt.RateLimit.Window.Duration())
	assert.Equal(t, 10, rt.RateLimit.BurstLimit) // merged default
	assert.True(t, rt.Auth.RequiresAuthorization())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig("")
	require.Error(t, err)

	_, err = LoadConfig("/nonexistent/gateway.yaml")
	require.Error(t, err)

	_, err = LoadConfig(t.TempDir())
	require.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes: {not: [valid"), 0o600))
	_, err = LoadConfig(path)
	require.Error(t, err)
}

func TestGatewayConfig_FindRoute(t *testing.T) {
	cfg := &GatewayConfig{
		Routes: []*Route{
			{Path: "/api/shipments", Methods: []string{"GET"}},
			{Path: "/api/*"},
		},
	}

	rt := cfg.FindRoute("GET", "/api/shipments")
	require.NotNil(t, rt)
	assert.Equal(t, "/api/shipments", rt.Path)

	// Falls through to the wildcard for other methods.
	rt = cfg.FindRoute("POST", "/api/shipments")
	require.NotNil(t, rt)
	assert.Equal(t, "/api/*", rt.Path)

	assert.Nil(t, cfg.FindRoute("GET", "/healthz"))
}

func TestDuration_Unmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1h30m"`)))
	assert.Equal(t, 90*time.Minute, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, time.Duration(0), d.Duration())

	require.Error(t, d.UnmarshalJSON([]byte(`"fast"`)))
}
