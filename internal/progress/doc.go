// Package progress carries the outward notifications of the download queue:
// informational and error messages, per-job lifecycle milestones, and the
// queue index. A non-blocking Hub batches events on a background goroutine
// and fans them out to pluggable sinks such as logs, Prometheus collectors,
// and the recent-events feed served to the display surface.
package progress
