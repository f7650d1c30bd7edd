// Package monitoring provides Prometheus metrics for the command core:
// HTTP traffic, command execution by backend, SSH pool churn, and
// sandbox clamp counts. Exposition happens on /metrics via the standard
// promhttp handler.
package monitoring
