package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Channel and feed metrics.
var (
	ChannelReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "novacore_channel_reconnects_total",
		Help: "Realtime channel reconnect attempts.",
	})

	ChannelEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novacore_channel_events_total",
			Help: "Envelopes received on the realtime channel.",
		},
		[]string{"outcome"}, // handled | ignored | malformed
	)

	FeedUnread = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "novacore_feed_unread",
		Help: "Current unread notification count in the local feed.",
	})

	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novacore_api_requests_total",
			Help: "Outbound API requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(ChannelReconnects, ChannelEvents, FeedUnread, APIRequests)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
