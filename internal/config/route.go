package config

import (
	"strings"
	"time"
)

// Identifier modes for rate limit keys.
const (
	IdentifierIP     = "ip"
	IdentifierUser   = "user"
	IdentifierAPIKey = "api_key"
	IdentifierCustom = "custom"
)

// Data formats for response re-serialization.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatCSV  = "csv"
)

// RateLimitConfig holds rate limiting configuration for a route.
type RateLimitConfig struct {
	// Limit is the maximum number of requests allowed in the window.
	Limit int `yaml:"limit,omitempty" json:"limit,omitempty"`

	// Window is the sliding window duration.
	Window Duration `yaml:"window,omitempty" json:"window,omitempty"`

	// BurstLimit is the number of extra requests admitted in short spikes.
	BurstLimit int `yaml:"burstLimit,omitempty" json:"burstLimit,omitempty"`

	// Identifier selects how the limiter key is derived: ip, user,
	// api_key, or custom.
	Identifier string `yaml:"identifier,omitempty" json:"identifier,omitempty"`

	// IdentifierField is the body field used when Identifier is custom.
	IdentifierField string `yaml:"identifierField,omitempty" json:"identifierField,omitempty"`
}

// DefaultRateLimitConfig returns the rate limit defaults.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Limit:      100,
		Window:     Duration(60 * time.Second),
		BurstLimit: 10,
		Identifier: IdentifierIP,
	}
}

// AuthConfig holds authentication and authorization configuration for a route.
type AuthConfig struct {
	// Required indicates whether authentication is required.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Providers is the ordered list of providers to try.
	Providers []string `yaml:"providers,omitempty" json:"providers,omitempty"`

	// Authorize enables the authorization step after authentication.
	Authorize bool `yaml:"authorize,omitempty" json:"authorize,omitempty"`

	// Permissions must all be held by the principal.
	Permissions []string `yaml:"permissions,omitempty" json:"permissions,omitempty"`

	// Roles requires any intersection with the principal's roles.
	Roles []string `yaml:"roles,omitempty" json:"roles,omitempty"`

	// Scopes requires any intersection with the principal's granted scopes.
	Scopes []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`
}

// DefaultAuthConfig returns the authentication defaults.
func DefaultAuthConfig() *AuthConfig {
	return &AuthConfig{
		Required:  true,
		Providers: []string{"api_key", "jwt", "bearer"},
	}
}

// RequiresAuthorization reports whether the authorization step should run.
func (c *AuthConfig) RequiresAuthorization() bool {
	if c == nil {
		return false
	}
	return c.Authorize || len(c.Permissions) > 0 || len(c.Roles) > 0 || len(c.Scopes) > 0
}

// HeaderRule declares a required header and an optional format check.
type HeaderRule struct {
	// Name is the header name.
	Name string `yaml:"name" json:"name"`

	// Format is an optional format pattern: email, uuid, ip, or url.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// ValidationConfig holds request validation configuration for a route.
type ValidationConfig struct {
	// Enabled indicates whether validation runs for the route.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Rules maps body field names to pipe-separated rule strings.
	Rules map[string]string `yaml:"rules,omitempty" json:"rules,omitempty"`

	// RequiredFields must be present and non-empty in the body.
	RequiredFields []string `yaml:"requiredFields,omitempty" json:"requiredFields,omitempty"`

	// RequiredHeaders must be present, with optional format checks.
	RequiredHeaders []HeaderRule `yaml:"requiredHeaders,omitempty" json:"requiredHeaders,omitempty"`

	// MaxRequestSize is the request size ceiling in bytes.
	MaxRequestSize int64 `yaml:"maxRequestSize,omitempty" json:"maxRequestSize,omitempty"`

	// AllowedContentTypes is the content-type allow-list.
	AllowedContentTypes []string `yaml:"allowedContentTypes,omitempty" json:"allowedContentTypes,omitempty"`
}

// DefaultValidationConfig returns the validation defaults.
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		Enabled:        true,
		MaxRequestSize: 10 << 20,
		AllowedContentTypes: []string{
			"application/json",
			"application/x-www-form-urlencoded",
			"multipart/form-data",
		},
	}
}

// TransformConfig holds request/response transformation configuration.
type TransformConfig struct {
	// TransformRequest enables inbound transformation.
	TransformRequest bool `yaml:"transformRequest,omitempty" json:"transformRequest,omitempty"`

	// TransformResponse enables outbound transformation.
	TransformResponse bool `yaml:"transformResponse,omitempty" json:"transformResponse,omitempty"`

	// FieldMappings maps target field names to source field paths.
	FieldMappings map[string]string `yaml:"fieldMappings,omitempty" json:"fieldMappings,omitempty"`

	// Transformers is the ordered list of named transformer functions.
	Transformers []string `yaml:"transformers,omitempty" json:"transformers,omitempty"`

	// DataFormat is the wire format for response re-serialization:
	// json, xml, or csv.
	DataFormat string `yaml:"dataFormat,omitempty" json:"dataFormat,omitempty"`

	// NormalizeFields enables field-name normalization to snake_case.
	NormalizeFields bool `yaml:"normalizeFields,omitempty" json:"normalizeFields,omitempty"`

	// AddMetadata enables request metadata injection.
	AddMetadata bool `yaml:"addMetadata,omitempty" json:"addMetadata,omitempty"`
}

// DefaultTransformConfig returns the transformation defaults.
func DefaultTransformConfig() *TransformConfig {
	return &TransformConfig{
		DataFormat: FormatJSON,
	}
}

// Route holds the resolved configuration for a single route.
type Route struct {
	// Path is the route path pattern. A trailing "*" matches any suffix.
	Path string `yaml:"path" json:"path"`

	// Methods is the list of HTTP methods the route serves. Empty
	// matches all methods.
	Methods []string `yaml:"methods,omitempty" json:"methods,omitempty"`

	// RateLimit is the per-route rate limit configuration.
	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`

	// Auth is the per-route authentication configuration.
	Auth *AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`

	// Validation is the per-route validation configuration.
	Validation *ValidationConfig `yaml:"validation,omitempty" json:"validation,omitempty"`

	// Transform is the per-route transformation configuration.
	Transform *TransformConfig `yaml:"transform,omitempty" json:"transform,omitempty"`
}

// Matches reports whether the route serves the given method and path.
func (r *Route) Matches(method, path string) bool {
	if len(r.Methods) > 0 {
		found := false
		for _, m := range r.Methods {
			if strings.EqualFold(m, method) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if strings.HasSuffix(r.Path, "*") {
		return strings.HasPrefix(path, strings.TrimSuffix(r.Path, "*"))
	}
	return r.Path == path
}

// applyDefaults merges system defaults into the route. Absence of an
// override means "use default", never "disable".
func (r *Route) applyDefaults(defaults *Defaults) {
	if r.RateLimit == nil {
		r.RateLimit = defaults.RateLimit
	} else {
		r.RateLimit.merge(defaults.RateLimit)
	}
	if r.Auth == nil {
		r.Auth = defaults.Auth
	} else {
		r.Auth.merge(defaults.Auth)
	}
	if r.Validation == nil {
		r.Validation = defaults.Validation
	} else {
		r.Validation.merge(defaults.Validation)
	}
	if r.Transform == nil {
		r.Transform = defaults.Transform
	} else if r.Transform.DataFormat == "" {
		r.Transform.DataFormat = defaults.Transform.DataFormat
	}
}

func (c *RateLimitConfig) merge(d *RateLimitConfig) {
	if c.Limit == 0 {
		c.Limit = d.Limit
	}
	if c.Window == 0 {
		c.Window = d.Window
	}
	if c.BurstLimit == 0 {
		c.BurstLimit = d.BurstLimit
	}
	if c.Identifier == "" {
		c.Identifier = d.Identifier
	}
}

func (c *AuthConfig) merge(d *AuthConfig) {
	if len(c.Providers) == 0 {
		c.Providers = d.Providers
	}
}

func (c *ValidationConfig) merge(d *ValidationConfig) {
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = d.MaxRequestSize
	}
	if len(c.AllowedContentTypes) == 0 {
		c.AllowedContentTypes = d.AllowedContentTypes
	}
}
