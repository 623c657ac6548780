// Package authz implements route-level authorization decisions over an
// authenticated principal: required permissions (all must hold),
// accepted roles (any suffices), and accepted scopes (any suffices).
package authz
