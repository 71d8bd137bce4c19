package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lesson_scheduler",
			Name:      "reservations_total",
			Help:      "Count of successful lesson reservations.",
		},
	)

	cancellations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lesson_scheduler",
			Name:      "cancellations_total",
			Help:      "Count of cancelled reservations.",
		},
	)

	promotions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lesson_scheduler",
			Name:      "waiting_promotions_total",
			Help:      "Count of waiting-list promotion attempts by outcome.",
		},
		[]string{"outcome"},
	)

	waitingJoined = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lesson_scheduler",
			Name:      "waiting_joined_total",
			Help:      "Count of members joining a waiting list.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservations, cancellations, promotions, waitingJoined)
	})
}

func IncReservation() {
	reservations.Inc()
}

func IncCancellation() {
	cancellations.Inc()
}

// IncPromotion records one promotion attempt: "promoted" when a waiter took
// the slot, "skipped" when a waiter was passed over for lack of credit.
func IncPromotion(outcome string) {
	promotions.WithLabelValues(outcome).Inc()
}

func IncWaitingJoined() {
	waitingJoined.Inc()
}
