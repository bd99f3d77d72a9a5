// Package metrics provides Prometheus metrics for the asset tracking service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AllocationsTotal tracks ShortID allocations by entity type and mode
	AllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "shortid",
			Name:      "allocations_total",
			Help:      "Total number of ShortID allocations by entity type and mode",
		},
		[]string{"tenant_id", "entity_type", "mode"},
	)

	// ReleasesTotal tracks ShortID releases
	ReleasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "shortid",
			Name:      "releases_total",
			Help:      "Total number of ShortID releases",
		},
		[]string{"tenant_id"},
	)

	// PoolLabelsTotal tracks pool label lifecycle transitions
	PoolLabelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "pool",
			Name:      "labels_total",
			Help:      "Total number of pool label transitions by outcome",
		},
		[]string{"tenant_id", "outcome"},
	)

	// PrintTasksTotal tracks print task status transitions
	PrintTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "print",
			Name:      "tasks_total",
			Help:      "Total number of print task transitions by status",
		},
		[]string{"tenant_id", "status"},
	)

	// CablesTotal tracks cable connects and disconnects
	CablesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cabling",
			Name:      "cables_total",
			Help:      "Total number of cable connects and disconnects",
		},
		[]string{"tenant_id", "action"},
	)

	// TopologyQueryDuration tracks topology expansion duration in seconds
	TopologyQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "topology",
			Name:      "query_duration_seconds",
			Help:      "Duration of topology queries in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// GraphWriteDuration tracks graph mutation duration in seconds
	GraphWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "graph",
			Name:      "write_duration_seconds",
			Help:      "Duration of graph mutations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// RecordAllocation records a ShortID allocation
func RecordAllocation(tenantID, entityType, mode string) {
	AllocationsTotal.WithLabelValues(tenantID, entityType, mode).Inc()
}

// RecordRelease records a ShortID release
func RecordRelease(tenantID string) {
	ReleasesTotal.WithLabelValues(tenantID).Inc()
}

// RecordPoolLabels records pool label transitions
func RecordPoolLabels(tenantID, outcome string, count int) {
	PoolLabelsTotal.WithLabelValues(tenantID, outcome).Add(float64(count))
}

// RecordPrintTask records a print task status transition
func RecordPrintTask(tenantID, status string) {
	PrintTasksTotal.WithLabelValues(tenantID, status).Inc()
}

// RecordCable records a cable connect or disconnect
func RecordCable(tenantID, action string) {
	CablesTotal.WithLabelValues(tenantID, action).Inc()
}
