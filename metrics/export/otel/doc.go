// Package otel publishes engine metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers an Int64ObservableCounter for every engine
// counter, and cumulative bucket, count and sum gauges for the latency
// histogram. A single callback reads [goSession.Engine.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
