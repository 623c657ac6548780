// Package auth implements the authentication stage of the request
// pipeline. Credentials are resolved by an ordered chain of providers
// (API key, JWT, opaque bearer token); the first provider to produce a
// principal wins. Successful results may be cached for a short TTL to
// avoid repeated store lookups.
package auth
