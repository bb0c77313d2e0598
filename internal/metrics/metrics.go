// Package metrics holds the Prometheus collectors of the booking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BookingsCreated counts committed bookings by session type and payment.
var BookingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "practice",
	Subsystem: "booking",
	Name:      "created_total",
	Help:      "Bookings committed, by session type and whether a credit paid for them.",
}, []string{"session_type", "paid_with_credit"})

// Cancellations counts committed cancellations by decision type.
var Cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "practice",
	Subsystem: "booking",
	Name:      "cancellations_total",
	Help:      "Cancellations committed, by policy decision type.",
}, []string{"type"})

// Reschedules counts committed reschedules.
var Reschedules = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "practice",
	Subsystem: "booking",
	Name:      "reschedules_total",
	Help:      "Reschedules committed.",
})

// Rejections counts operations refused with a typed error.
var Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "practice",
	Subsystem: "booking",
	Name:      "rejections_total",
	Help:      "Operations rejected, by operation and error kind.",
}, []string{"operation", "kind"})

// SideEffectFailures counts post-commit calendar and notification calls
// that failed or timed out.
var SideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "practice",
	Subsystem: "side_effect",
	Name:      "failures_total",
	Help:      "Post-commit side effects that failed, by task.",
}, []string{"task"})

// CreditMovements counts ledger entries by kind.
var CreditMovements = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "practice",
	Subsystem: "credit",
	Name:      "movements_total",
	Help:      "Credit ledger entries written, by kind.",
}, []string{"kind"})

// AvailabilitySeconds observes how long a slot computation takes,
// including loading bookings and busy intervals.
var AvailabilitySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "practice",
	Subsystem: "availability",
	Name:      "compute_seconds",
	Help:      "Time spent computing available slots.",
	Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
})

// NotificationsConsumed counts events drained by the notification worker.
var NotificationsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "practice",
	Subsystem: "notify",
	Name:      "consumed_total",
	Help:      "Notification events consumed, by template and result.",
}, []string{"template", "result"})
