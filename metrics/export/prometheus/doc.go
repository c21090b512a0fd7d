// Package prometheus exposes authcore counters to Prometheus.
//
// [PrometheusExporter] implements prometheus.Collector, so it can be
// registered on any registry alongside process and Go collectors, or served
// on its own through [PrometheusExporter.Handler].
//
// # What this package must NOT do
//
//   - Register itself on the default registry.
//   - Mutate service state.
package prometheus
