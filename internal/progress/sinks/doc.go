// Package sinks implements concrete progress consumers: structured logging,
// Prometheus collectors, and the in-memory feed behind the display surface.
// Each sink satisfies progress.Sink and tolerates repeated Consume calls.
package sinks
