// Package token authenticates opaque personal access tokens presented
// as bearer credentials. Tokens have a fixed length; bearer values of
// any other length are retried as JWTs.
package token
