package pipeline

import "time"

// Principal is the resolved identity of the calling user or service.
type Principal struct {
	// Subject is the unique identifier for the principal.
	Subject string `json:"sub"`

	// Name is a human-readable name.
	Name string `json:"name,omitempty"`

	// Provider is the authentication provider that resolved the principal.
	Provider string `json:"provider"`

	// Roles assigned to the principal.
	Roles []string `json:"roles,omitempty"`

	// Permissions granted to the principal.
	Permissions []string `json:"permissions,omitempty"`

	// Scopes granted to the principal.
	Scopes []string `json:"scopes,omitempty"`

	// ExpiresAt is when the underlying credential expires. Zero means
	// no expiry.
	ExpiresAt time.Time `json:"exp,omitempty"`

	// RateLimitOverride, when positive, replaces the route's rate limit
	// for this principal.
	RateLimitOverride int `json:"rate_limit_override,omitempty"`

	// Metadata contains provider-specific extras.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsExpired returns true if the principal's credential has expired.
func (p *Principal) IsExpired() bool {
	if p.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(p.ExpiresAt)
}

// HasRole checks if the principal holds a specific role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the principal holds any of the given roles.
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

// HasPermission checks if the principal holds a specific permission.
func (p *Principal) HasPermission(permission string) bool {
	for _, perm := range p.Permissions {
		if perm == permission {
			return true
		}
	}
	return false
}

// HasScope checks if the principal was granted a specific scope.
func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAnyScope checks if the principal was granted any of the given scopes.
func (p *Principal) HasAnyScope(scopes ...string) bool {
	for _, scope := range scopes {
		if p.HasScope(scope) {
			return true
		}
	}
	return false
}
