// Package pipeline implements the gateway request pipeline: a
// priority-ordered chain of middleware stages driven by a single mutable
// per-request Context. Each stage may short-circuit the chain by setting a
// terminal response; downstream stages then do not run, while partial
// context state stays inspectable for diagnostics.
package pipeline
