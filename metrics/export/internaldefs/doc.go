// Package internaldefs holds the metric name and bucket definitions shared
// by the exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and OTel
// exporters publish identical metric names and bucket boundaries. A change
// in this package affects every exporter at once.
//
// The package must not import any exporter package and must not perform I/O.
package internaldefs
