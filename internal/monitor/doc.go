// Package monitor wraps pipeline execution with end-to-end
// measurement: wall-clock time and heap growth around the whole chain,
// per-route metrics, response logging, and threshold alerting through
// pluggable sinks.
package monitor
