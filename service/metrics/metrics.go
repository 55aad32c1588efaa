package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialnet_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "socialnet_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Realtime
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "socialnet_ws_sessions_active",
			Help: "Open websocket sessions on this node",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "socialnet_presence_online_users",
			Help: "Users present in the local registry",
		},
	)

	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialnet_ws_inbound_events_total",
			Help: "Inbound client events by kind",
		},
		[]string{"event"},
	)

	OutboundDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialnet_ws_outbound_dropped_total",
			Help: "Outbound frames dropped",
		},
		[]string{"reason"}, // "offline" / "slow_consumer"
	)

	// Notifications
	NotificationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialnet_notification_outcomes_total",
			Help: "Notification trigger outcomes",
		},
		[]string{"outcome"}, // created / duplicate / self / failed
	)

	PersistLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "socialnet_notification_persist_seconds",
			Help:    "Notification create-if-absent latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)
