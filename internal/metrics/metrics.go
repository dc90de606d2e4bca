// Package metrics provides Prometheus metrics for the LFG service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks the number of open LFG sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lfg_active_sessions",
			Help: "Number of currently open LFG sessions",
		},
	)

	// SessionsCreated tracks the total number of sessions created.
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lfg_sessions_created_total",
			Help: "Total number of LFG sessions created",
		},
	)

	// SessionsDeleted tracks deleted sessions by reason (deleted, reclaimed, expired, shutdown).
	SessionsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lfg_sessions_deleted_total",
			Help: "Total number of LFG sessions torn down",
		},
		[]string{"reason"},
	)

	// ManagedRooms tracks voice rooms owned by the service.
	ManagedRooms = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lfg_managed_rooms",
			Help: "Number of voice rooms currently managed",
		},
		[]string{"kind"},
	)

	// IdleTimers tracks idle timer outcomes: armed, cancelled, fired, race.
	IdleTimers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lfg_idle_timers_total",
			Help: "Idle reclamation timer events",
		},
		[]string{"event"},
	)

	// Rejections tracks rejected user requests by error kind.
	Rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lfg_rejections_total",
			Help: "Rejected user requests",
		},
		[]string{"kind"},
	)

	// CleanupFailures tracks best-effort platform calls that failed and were swallowed.
	CleanupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lfg_cleanup_failures_total",
			Help: "Failed best-effort cleanup calls",
		},
		[]string{"op"},
	)
)

// RecordSessionCreated increments session creation metrics.
func RecordSessionCreated() {
	SessionsCreated.Inc()
	ActiveSessions.Inc()
}

// RecordSessionDeleted increments deletion metrics.
func RecordSessionDeleted(reason string) {
	SessionsDeleted.WithLabelValues(reason).Inc()
	ActiveSessions.Dec()
}

func RecordRejection(kind string) {
	Rejections.WithLabelValues(kind).Inc()
}
