// Package config provides configuration management for the gateway pipeline.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	// Port is the listen port.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// Address is the listen address.
	Address string `yaml:"address,omitempty" json:"address,omitempty"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`

	// IdleTimeout is the maximum keep-alive idle duration.
	IdleTimeout Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`

	// GlobalRPS caps requests per second across all clients. Zero
	// disables the global limiter.
	GlobalRPS int `yaml:"globalRps,omitempty" json:"globalRps,omitempty"`

	// GlobalBurst is the burst size for the global limiter.
	GlobalBurst int `yaml:"globalBurst,omitempty" json:"globalBurst,omitempty"`
}

// RedisConfig holds connection settings for redis-backed stores.
type RedisConfig struct {
	// Enabled switches the rate limit store and auth cache to redis.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Address is the redis host:port.
	Address string `yaml:"address,omitempty" json:"address,omitempty"`

	// Password is the redis password.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// DB is the redis database number.
	DB int `yaml:"db,omitempty" json:"db,omitempty"`
}

// MonitorConfig holds performance monitoring thresholds and sinks.
type MonitorConfig struct {
	// SlowRequestThreshold triggers a slow_request alert.
	SlowRequestThreshold Duration `yaml:"slowRequestThreshold,omitempty" json:"slowRequestThreshold,omitempty"`

	// HighMemoryThreshold is the heap delta in bytes that triggers a
	// high_memory alert.
	HighMemoryThreshold int64 `yaml:"highMemoryThreshold,omitempty" json:"highMemoryThreshold,omitempty"`

	// WebhookURLs are external alert sink endpoints.
	WebhookURLs []string `yaml:"webhookUrls,omitempty" json:"webhookUrls,omitempty"`
}

// DefaultMonitorConfig returns the monitoring defaults.
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		SlowRequestThreshold: Duration(2 * time.Second),
		HighMemoryThreshold:  10 << 20,
	}
}

// AuthCacheConfig holds auth result cache settings.
type AuthCacheConfig struct {
	// TTL is how long a cached auth result is trusted.
	TTL Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`

	// MaxEntries bounds the in-memory cache size.
	MaxEntries int `yaml:"maxEntries,omitempty" json:"maxEntries,omitempty"`
}

// JWTConfig holds JWT verification settings.
type JWTConfig struct {
	// Secret is the shared HS256 secret.
	Secret string `yaml:"secret,omitempty" json:"secret,omitempty"`

	// Issuer, when set, must match the token's iss claim.
	Issuer string `yaml:"issuer,omitempty" json:"issuer,omitempty"`
}

// Defaults holds system-wide middleware defaults merged into every route.
type Defaults struct {
	RateLimit  *RateLimitConfig  `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	Auth       *AuthConfig       `yaml:"auth,omitempty" json:"auth,omitempty"`
	Validation *ValidationConfig `yaml:"validation,omitempty" json:"validation,omitempty"`
	Transform  *TransformConfig  `yaml:"transform,omitempty" json:"transform,omitempty"`
}

// GatewayConfig is the top-level configuration.
type GatewayConfig struct {
	Server    *ServerConfig    `yaml:"server,omitempty" json:"server,omitempty"`
	Log       *LogSettings     `yaml:"log,omitempty" json:"log,omitempty"`
	Redis     *RedisConfig     `yaml:"redis,omitempty" json:"redis,omitempty"`
	Monitor   *MonitorConfig   `yaml:"monitor,omitempty" json:"monitor,omitempty"`
	AuthCache *AuthCacheConfig `yaml:"authCache,omitempty" json:"authCache,omitempty"`
	JWT       *JWTConfig       `yaml:"jwt,omitempty" json:"jwt,omitempty"`
	Defaults  *Defaults        `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Routes    []*Route         `yaml:"routes,omitempty" json:"routes,omitempty"`
}

// LogSettings holds logging configuration.
type LogSettings struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// DefaultConfig returns a GatewayConfig with default values.
func DefaultConfig() *GatewayConfig {
	return &GatewayConfig{
		Server: &ServerConfig{
			Port:         8080,
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
			IdleTimeout:  Duration(120 * time.Second),
		},
		Log:     &LogSettings{Level: "info", Format: "json", Output: "stdout"},
		Monitor: DefaultMonitorConfig(),
		AuthCache: &AuthCacheConfig{
			TTL:        Duration(5 * time.Minute),
			MaxEntries: 10000,
		},
		Defaults: &Defaults{
			RateLimit:  DefaultRateLimitConfig(),
			Auth:       DefaultAuthConfig(),
			Validation: DefaultValidationConfig(),
			Transform:  DefaultTransformConfig(),
		},
	}
}

// Normalize fills missing sections with defaults and merges route
// overrides. It is called once at load time, not per request.
func (c *GatewayConfig) Normalize() {
	def := DefaultConfig()

	if c.Server == nil {
		c.Server = def.Server
	}
	if c.Log == nil {
		c.Log = def.Log
	}
	if c.Monitor == nil {
		c.Monitor = def.Monitor
	} else {
		if c.Monitor.SlowRequestThreshold == 0 {
			c.Monitor.SlowRequestThreshold = def.Monitor.SlowRequestThreshold
		}
		if c.Monitor.HighMemoryThreshold == 0 {
			c.Monitor.HighMemoryThreshold = def.Monitor.HighMemoryThreshold
		}
	}
	if c.AuthCache == nil {
		c.AuthCache = def.AuthCache
	}
	if c.Defaults == nil {
		c.Defaults = def.Defaults
	} else {
		if c.Defaults.RateLimit == nil {
			c.Defaults.RateLimit = def.Defaults.RateLimit
		} else {
			c.Defaults.RateLimit.merge(def.Defaults.RateLimit)
		}
		if c.Defaults.Auth == nil {
			c.Defaults.Auth = def.Defaults.Auth
		} else {
			c.Defaults.Auth.merge(def.Defaults.Auth)
		}
		if c.Defaults.Validation == nil {
			c.Defaults.Validation = def.Defaults.Validation
		} else {
			c.Defaults.Validation.merge(def.Defaults.Validation)
		}
		if c.Defaults.Transform == nil {
			c.Defaults.Transform = def.Defaults.Transform
		}
	}

	for _, route := range c.Routes {
		route.applyDefaults(c.Defaults)
	}
}

// Validate checks the configuration for structural errors.
func (c *GatewayConfig) Validate() error {
	if c.Server != nil && (c.Server.Port < 0 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	seen := make(map[string]struct{})
	for i, route := range c.Routes {
		if route.Path == "" {
			return fmt.Errorf("route %d: path is required", i)
		}
		key := route.Path
		for _, m := range route.Methods {
			key += ":" + m
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate route: %s", route.Path)
		}
		seen[key] = struct{}{}

		if rl := route.RateLimit; rl != nil {
			if rl.Limit < 0 {
				return fmt.Errorf("route %s: rate limit must be non-negative", route.Path)
			}
			if rl.Identifier == IdentifierCustom && rl.IdentifierField == "" {
				return fmt.Errorf("route %s: custom identifier requires identifierField", route.Path)
			}
		}
		if tc := route.Transform; tc != nil && tc.DataFormat != "" {
			switch tc.DataFormat {
			case FormatJSON, FormatXML, FormatCSV:
			default:
				return fmt.Errorf("route %s: unsupported data format %q", route.Path, tc.DataFormat)
			}
		}
	}

	return nil
}

// FindRoute returns the first route matching the method and path, or nil.
func (c *GatewayConfig) FindRoute(method, path string) *Route {
	for _, route := range c.Routes {
		if route.Matches(method, path) {
			return route
		}
	}
	return nil
}
