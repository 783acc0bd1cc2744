// Package metrics registers the Prometheus collectors the messenger core
// and statusapi expose, grounded on katzenpost-katzenpost's node metrics
// wiring pattern (one package-level Registry, collectors constructed once
// and passed by reference into the components that observe them).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the messenger core updates. It owns no
// protocol state; the messenger package is the only caller, and it only
// ever calls Observe/Inc/Set/Add on the fields here.
type Metrics struct {
	Registry *prometheus.Registry

	TickDuration        prometheus.Histogram
	FriendsOnline       prometheus.Gauge
	ReceiptsOutstanding prometheus.Gauge
	FileBytesSent       prometheus.Counter
	FileBytesReceived   prometheus.Counter
	DispatchDropped     prometheus.Counter
}

// New constructs a fresh Metrics bundle registered into its own
// Registry, so cmd/messengerd can expose it on its own /metrics handler
// without colliding with the default global registry another library
// might use.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "messenger_tick_duration_seconds",
			Help:    "Duration of one Messenger.Tick call.",
			Buckets: prometheus.DefBuckets,
		}),
		FriendsOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "messenger_friends_online",
			Help: "Number of friends currently Online.",
		}),
		ReceiptsOutstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "messenger_receipts_outstanding",
			Help: "Total outstanding read receipts across all friends.",
		}),
		FileBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messenger_file_bytes_sent_total",
			Help: "Total bytes handed to the transport via file_data.",
		}),
		FileBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messenger_file_bytes_received_total",
			Help: "Total bytes delivered via the file_data receive upcall.",
		}),
		DispatchDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messenger_dispatch_dropped_total",
			Help: "Packets dropped by the dispatcher as malformed or out-of-state.",
		}),
	}
	reg.MustRegister(
		m.TickDuration,
		m.FriendsOnline,
		m.ReceiptsOutstanding,
		m.FileBytesSent,
		m.FileBytesReceived,
		m.DispatchDropped,
	)
	return m
}
