package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CredentialSyncs counts Sync outcomes: cached, refreshed or failed.
	CredentialSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nsoctl_credential_sync_total",
		Help: "Total number of credential syncs grouped by outcome",
	}, []string{"result"})
	// Keyed by stage and status code; transport failures use code "error".
	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nsoctl_upstream_requests_total",
		Help: "Total number of upstream HTTP exchanges grouped by stage and status code",
	}, []string{"stage", "code"})
	AttestationRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nsoctl_attestation_requests_total",
		Help: "Total number of attestation (flapg) requests grouped by result",
	}, []string{"result"})
	CredentialAge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nsoctl_credential_age_seconds",
		Help: "Age of the cached web API credential at the last sync",
	})
)

func init() {
	prometheus.MustRegister(CredentialSyncs)
	prometheus.MustRegister(UpstreamRequests)
	prometheus.MustRegister(AttestationRequests)
	prometheus.MustRegister(CredentialAge)
}

// WriteTextfile dumps the default registry in the node-exporter textfile
// format, which is how short-lived CLI runs publish their counters.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
