package ratelimit

import (
	"github.com/shiptrack/gateway/internal/config"
	"github.com/shiptrack/gateway/internal/pipeline"
)

// anonymousIdentity is used for the user identifier mode before
// authentication has resolved a principal.
const anonymousIdentity = "anonymous"

// apiKeyHeader is the header carrying the API key credential.
const apiKeyHeader = "X-API-Key"

// Key derives the limiter key for a request: the configured identifier
// combined with route path and method, so different endpoints have
// independent budgets.
func Key(c *pipeline.Context, cfg *config.RateLimitConfig) string {
	return identifier(c, cfg) + ":" + c.Request.Path + ":" + c.Request.Method
}

func identifier(c *pipeline.Context, cfg *config.RateLimitConfig) string {
	switch cfg.Identifier {
	case config.IdentifierUser:
		if p := c.Principal(); p != nil {
			return p.Subject
		}
		return anonymousIdentity
	case config.IdentifierAPIKey:
		if key := c.Request.Header.Get(apiKeyHeader); key != "" {
			return key
		}
		return c.Request.ClientIP()
	case config.IdentifierCustom:
		if v := c.Request.BodyField(cfg.IdentifierField); v != "" {
			return v
		}
		return c.Request.ClientIP()
	default:
		return c.Request.ClientIP()
	}
}
