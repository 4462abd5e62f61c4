// Package observe provides the telemetry surface for the resilience layer:
// structured JSON logging with component scoping and field redaction,
// OpenTelemetry metric instruments for circuits, retries, quotas, cache
// dedup and pool saturation, and tracing for guarded executions.
package observe
