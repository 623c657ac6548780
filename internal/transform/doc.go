// Package transform implements request and response payload
// transformation: field remapping over dotted paths, named transformer
// functions, key normalization, metadata injection, and response
// re-serialization to the route's wire format. Transformation never
// rejects a request; any failure is logged and the original payload
// passes through untouched.
package transform
