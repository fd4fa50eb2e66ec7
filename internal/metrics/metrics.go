package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	UnitsDownloaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "seriarr",
			Name:      "units_downloaded_total",
			Help:      "Units fetched and persisted by the sequential downloader.",
		},
	)

	UnitsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "seriarr",
			Name:      "units_failed_total",
			Help:      "Units recorded as failed after exhausting retries.",
		},
	)

	UnitRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "seriarr",
			Name:      "unit_retries_total",
			Help:      "Per-unit fetch retries performed by the downloader.",
		},
	)

	CheckpointWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "seriarr",
			Name:      "checkpoint_writes_total",
			Help:      "DownloadState persistence operations.",
		},
	)

	AcquisitionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seriarr",
			Name:      "acquisition_events_total",
			Help:      "Count of downloader events processed by the run registry.",
		},
		[]string{"status"},
	)

	SwarmRPCErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seriarr",
			Name:      "swarm_rpc_errors_total",
			Help:      "Errors from swarm client JSON-RPC calls.",
		},
		[]string{"method"},
	)

	SwarmRPCLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seriarr",
			Name:      "swarm_rpc_latency_seconds",
			Help:      "Latency of swarm client JSON-RPC calls.",
		},
		[]string{"method"},
	)

	ActiveTransfers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "seriarr",
			Name:      "active_transfers",
			Help:      "Number of open swarm handles tracked by the pipeline.",
		},
	)
)

// Register registers the seriarr metrics into the default registry.
func Register() {
	prometheus.MustRegister(UnitsDownloaded, UnitsFailed, UnitRetries,
		CheckpointWrites, AcquisitionEvents, SwarmRPCErrors, SwarmRPCLatency,
		ActiveTransfers)
}
