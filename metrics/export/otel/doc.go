// Package otel bridges tokenward's internal counters into OpenTelemetry
// observable instruments. The exporter registers a single callback that
// snapshots the service on each collection cycle; nothing is pushed.
package otel
