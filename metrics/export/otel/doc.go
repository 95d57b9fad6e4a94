// Package otel registers observable OpenTelemetry instruments that read
// engine metrics on each collection.
//
// Every counter becomes an Int64ObservableCounter. The latency histogram
// is published as one cumulative gauge per bucket plus a count gauge.
// Callers own the MeterProvider.
package otel
