package queue

import "github.com/prometheus/client_golang/prometheus"

var (
	pendingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nutrisync_offline_queue_pending",
			Help: "Operations waiting in the offline queue",
		},
	)

	replayCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrisync_offline_replay_total",
			Help: "Offline queue items replayed, by result",
		},
		[]string{"result"},
	)
)

// Collectors returns the queue's metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{pendingGauge, replayCounter}
}
