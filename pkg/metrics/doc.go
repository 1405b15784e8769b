// Package metrics defines Prometheus metrics for nsoctl, covering credential
// syncs, attestation calls and every upstream exchange.
package metrics
