// Package telemetry provides OpenTelemetry integration for distributed tracing and metrics.
// It enables comprehensive observability for workflow execution with support for:
//   - Distributed tracing with trace IDs and span context propagation
//   - Prometheus metrics for workflow and task execution statistics
//   - Custom metrics exporters and collectors
//   - Integration with industry-standard observability platforms
package telemetry
