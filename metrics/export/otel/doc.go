// Package otel provides OpenTelemetry metric bindings for authkit counters
// and histograms.
//
// [NewExporter] registers an Int64ObservableCounter per authkit counter and
// Int64ObservableGauge instruments per histogram bucket. A single callback
// reads [authkit.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate engine state.
package otel
