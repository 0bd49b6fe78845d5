// Package metrics instruments the collection pipeline itself: tick outcomes,
// work-unit results, fetch latency and alert volume. Exposed at /metrics on
// the web server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskmon",
		Name:      "ticks_total",
		Help:      "Dispatcher ticks by frequency class and outcome.",
	}, []string{"class", "outcome"})

	WorkUnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskmon",
		Name:      "work_units_total",
		Help:      "Work units by fetcher kind and outcome.",
	}, []string{"kind", "outcome"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "riskmon",
		Name:      "fetch_duration_seconds",
		Help:      "Wall time of individual fetch invocations.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"kind"})

	SamplesStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "riskmon",
		Name:      "samples_stored_total",
		Help:      "Metric samples appended to the store.",
	})

	AlertsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskmon",
		Name:      "alerts_triggered_total",
		Help:      "Alerts written by severity.",
	}, []string{"severity"})

	AlertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "riskmon",
		Name:      "alerts_suppressed_total",
		Help:      "Alert firings absorbed by the suppression window.",
	})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskmon",
		Name:      "notifications_sent_total",
		Help:      "Alert notifications by channel and outcome.",
	}, []string{"channel", "outcome"})
)
