package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	actions         *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
	commands        *prometheus.CounterVec
	commandDuration prometheus.Histogram
	sockets         *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synccit",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "synccit",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synccit",
			Name:      "ai_actions_total",
			Help:      "AI actions by action and outcome (ok, client, config, upstream, internal).",
		}, []string{"action", "outcome"}),
		actionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "synccit",
			Name:      "ai_action_duration_seconds",
			Help:      "Time spent waiting for the completion service.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 90},
		}, []string{"action"}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synccit",
			Name:      "commands_total",
			Help:      "Command gate requests by outcome.",
		}, []string{"outcome"}),
		commandDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "synccit",
			Name:      "command_duration_seconds",
			Help:      "Wall-clock time of executed commands.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),
		sockets: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "synccit",
			Name:      "websocket_connections",
			Help:      "Open websocket connections by channel.",
		}, []string{"channel"}),
	}
}

func (m *metrics) observeAction(action, outcome string, d time.Duration) {
	m.actions.WithLabelValues(action, outcome).Inc()
	if outcome == "ok" || outcome == "upstream" {
		m.actionDuration.WithLabelValues(action).Observe(d.Seconds())
	}
}
