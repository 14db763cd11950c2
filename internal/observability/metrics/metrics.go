// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipwatch_cycles_total",
		Help: "Polling cycles run, labelled by outcome (ok, failed).",
	}, []string{"outcome"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shipwatch_cycle_duration_seconds",
		Help:    "Wall time of one polling cycle.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	ShipmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipwatch_shipments_total",
		Help: "Per-shipment results, labelled by status.",
	}, []string{"status"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipwatch_notifications_total",
		Help: "Notifications attempted, labelled by kind (event, guide) and delivered (true, false).",
	}, []string{"kind", "delivered"})

	GuidesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipwatch_guides_total",
		Help: "Secondary-guide pipeline outcomes, labelled by step.",
	}, []string{"step"})

	StateSaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipwatch_state_save_failures_total",
		Help: "Failed state store saves.",
	})

	TrackedShipments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shipwatch_tracked_shipments",
		Help: "Shipments in the current configuration.",
	})

	LastCycleTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shipwatch_last_cycle_timestamp_seconds",
		Help: "Unix time at which the last successful cycle finished.",
	})
)
