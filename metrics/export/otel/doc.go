// Package otel exposes authcore counters through OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter. The
// validation latency histogram is published as three instruments:
//
//	authcore_validate_latency_seconds_bucket  gauge, cumulative, attribute le
//	authcore_validate_latency_seconds_count   counter
//	authcore_validate_latency_seconds_sum     counter, seconds
//
// A single callback reads [authcore.Service.MetricsSnapshot] on each
// collection. Callers own the MeterProvider.
package otel
