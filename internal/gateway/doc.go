// Package gateway wires the request pipeline into an HTTP server. It
// matches incoming requests to configured routes, runs the stage chain
// under the performance monitor, and writes the terminal or
// pass-through response.
package gateway
