// Package apikey authenticates requests carrying an X-API-Key header.
// Keys are stored hashed (sha256 or bcrypt) and carry grants: roles,
// permissions, scopes, and an optional per-key rate limit override.
package apikey
