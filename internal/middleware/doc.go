// Package middleware holds the HTTP middleware of the dashboard API: request
// ids, structured request logging, panic recovery, rate limiting, timeouts,
// OpenTelemetry instrumentation and payload validation.
package middleware
