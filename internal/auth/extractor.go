package auth

import (
	"strings"

	"github.com/shiptrack/gateway/internal/pipeline"
)

const bearerPrefix = "Bearer "

// BearerToken extracts a bearer credential from the Authorization
// header, falling back to the token query parameter. Empty when
// neither carries one.
func BearerToken(r *pipeline.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}

	return r.Query.Get("token")
}
