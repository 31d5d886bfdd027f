// Package prometheus renders tokenward metrics in the Prometheus text
// exposition format without depending on the Prometheus client library.
// Mount Handler on a scrape endpoint, or call Render directly.
package prometheus
