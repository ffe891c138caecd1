package vehicles

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks a synchronization run
type Metrics struct {
	GatewayRequests   *prometheus.CounterVec
	VehiclesUpserted  prometheus.Counter
	SnapshotsAppended prometheus.Counter
	RunFailed         prometheus.Gauge
}

// NewMetrics creates the run metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		GatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wotdaily_gateway_requests_total",
			Help: "Wargaming API calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		VehiclesUpserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "wotdaily_vehicles_upserted_total",
			Help: "Vehicle reference rows written.",
		}),
		SnapshotsAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "wotdaily_snapshots_appended_total",
			Help: "Vehicle statistics snapshots appended.",
		}),
		RunFailed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wotdaily_run_failed",
			Help: "1 when the synchronization run has failed.",
		}),
	}
}

func (m *Metrics) observeGateway(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.GatewayRequests.WithLabelValues(operation, outcome).Inc()
}
