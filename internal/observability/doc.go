// Package observability builds the gateway's zap loggers and Prometheus collectors.
//
// Components receive a *zap.Logger and, where they report counters, a *Metrics.
// A nil *Metrics is valid and records nothing.
package observability
