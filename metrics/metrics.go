package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ===============================
// SYNC (refresh operations)
// ===============================
var (
	RefreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contractsync",
			Subsystem: "sync",
			Name:      "refresh_duration_ms",
			Help:      "Time from registry read to install or failure",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 15),
		},
		[]string{"kind"},
	)

	RefreshOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contractsync",
			Subsystem: "sync",
			Name:      "refresh_total",
			Help:      "Refresh calls by kind and outcome (noop, installed, superseded, failed)",
		},
		[]string{"kind", "outcome"},
	)

	RegistryVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "contractsync",
		Subsystem: "registry",
		Name:      "version",
		Help:      "Version of the installed registry snapshot",
	})

	RegistryContracts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "contractsync",
		Subsystem: "registry",
		Name:      "contracts",
		Help:      "Number of tracked contracts",
	})
)

// ===============================
// PROVIDER (round-trip cost)
// ===============================
var (
	ProviderQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contractsync",
			Subsystem: "provider",
			Name:      "get_utxos_duration_ms",
			Help:      "Provider GetUtxos latency",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 15),
		},
		[]string{"provider"},
	)

	ProviderQueryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contractsync",
			Subsystem: "provider",
			Name:      "get_utxos_errors_total",
			Help:      "Failed provider GetUtxos calls",
		},
		[]string{"provider"},
	)

	ProviderCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "contractsync",
		Subsystem: "provider",
		Name:      "cache_hits_total",
		Help:      "GetUtxos answered from the TTL cache",
	})
)

var registerOnce sync.Once

// ===============================
// REGISTER ALL
// ===============================
func Register(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerOnce.Do(func() {
		reg.MustRegister(
			RefreshDuration,
			RefreshOutcomes,
			RegistryVersion,
			RegistryContracts,

			ProviderQueryDuration,
			ProviderQueryErrors,
			ProviderCacheHits,
		)
	})
}

// ===============================
// HELPER
// ===============================
func ObserveDuration(h prometheus.Observer, start time.Time) {
	h.Observe(float64(time.Since(start).Microseconds()) / 1000)
}
