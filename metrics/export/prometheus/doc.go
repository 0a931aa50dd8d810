// Package prometheus exposes engine metrics through the Prometheus client.
//
// [NewCollector] returns a prometheus.Collector that reads
// [goSession.Engine.MetricsSnapshot] at scrape time. Counter names are
// gosession_*_total; the single histogram is
// gosession_operation_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the default registry implicitly. Callers call Register or
//     mount Handler.
//   - Mutate engine state.
package prometheus
