package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomdrop",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roomdrop",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	RoomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomdrop",
		Name:      "rooms_active",
		Help:      "Number of currently live rooms.",
	})

	DevicesRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomdrop",
		Name:      "devices_registered",
		Help:      "Number of devices currently registered.",
	})

	DevicesConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomdrop",
		Name:      "devices_connected",
		Help:      "Number of registered devices with connected status.",
	})

	TransfersOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomdrop",
		Name:      "transfers_open",
		Help:      "Number of transfers in a non-terminal state.",
	})

	TransfersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roomdrop",
		Name:      "transfers_created_total",
		Help:      "Total transfer requests created.",
	})

	TransfersTerminalTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomdrop",
		Name:      "transfers_terminal_total",
		Help:      "Total transfers reaching a terminal state, by outcome.",
	}, []string{"status"})

	TransferBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roomdrop",
		Name:      "transfer_bytes_total",
		Help:      "Total payload bytes streamed through the spool download path.",
	})

	DevicesEvictedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roomdrop",
		Name:      "devices_evicted_total",
		Help:      "Total devices evicted by the liveness sweep.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RoomsActive,
		DevicesRegistered,
		DevicesConnected,
		TransfersOpen,
		TransfersCreatedTotal,
		TransfersTerminalTotal,
		TransferBytesTotal,
		DevicesEvictedTotal,
	)
}
