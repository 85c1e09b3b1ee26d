// Package api hosts the optional status server. Notable routes:
//   - GET / returns the fixed legacy status payload.
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /status for the scheduler snapshot.
//   - GET /events?since=&limit= for the recent-notification feed.
//   - POST /v1/jobs to submit a URL through the same intake as the clipboard.
package api
