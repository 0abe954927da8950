// Package metrics exposes Prometheus counters for the consolidation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "consolex"

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consolidate",
			Name:      "runs_total",
			Help:      "Consolidation runs by code and final status",
		},
		[]string{"code", "status"},
	)

	ChangeOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consolidate",
			Name:      "change_outcomes_total",
			Help:      "Per-change outcomes by change kind and status",
		},
		[]string{"code", "kind", "status"},
	)

	ParseFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "amend",
			Name:      "parse_failures_total",
			Help:      "Acts rejected for unrecognized instruction fragments",
		},
		[]string{"code"},
	)

	ReviewQueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "queued_total",
			Help:      "Items queued for manual review by kind",
		},
		[]string{"code", "kind"},
	)
)
