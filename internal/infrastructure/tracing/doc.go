// Package tracing is a lightweight span tracer for the agent. One inbound
// envelope becomes one trace, keyed by its correlation id; finished spans
// drain through a buffered collector into the structured log.
package tracing
