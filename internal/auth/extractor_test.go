package auth

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shiptrack/gateway/internal/pipeline"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"authorization header", "Bearer abc123", "", "abc123"},
		{"header with padding", "Bearer   abc123", "", "abc123"},
		{"query parameter fallback", "", "tok-from-query", "tok-from-query"},
		{"header wins over query", "Bearer from-header", "from-query", "from-header"},
		{"basic scheme ignored", "Basic dXNlcjpwYXNz", "", ""},
		{"no credentials", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &pipeline.Request{Header: make(http.Header), Query: make(url.Values)}
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.query != "" {
				r.Query.Set("token", tt.query)
			}
			assert.Equal(t, tt.want, BearerToken(r))
		})
	}
}
