// Package observability provides structured logging and metrics for chatmux.
//
// This package implements:
//   - Process logger construction (zap-based, level and format from config)
//   - Prometheus metrics collection for requests, dispatches, provider
//     health, and cache activity
//
// Components receive their *zap.Logger and *Metrics by injection; nothing in
// here is a global.
package observability
