package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "booking_service"

var (
	once sync.Once

	dispatchCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_calls_total",
			Help:      "Booking record creation calls by result.",
		},
		[]string{"result"},
	)

	pollFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_fetches_total",
			Help:      "Status reconciler fetches by result.",
		},
		[]string{"result"},
	)

	outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Terminal outcomes of logical bookings.",
		},
		[]string{"outcome"},
	)

	payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment attempts by result.",
		},
		[]string{"result"},
	)

	resolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time from dispatch to terminal outcome.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Booking sessions currently held in memory.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(dispatchCalls, pollFetches, outcomes, payments, resolveDuration, activeSessions)
	})
}

func IncDispatchCall(result string) {
	dispatchCalls.WithLabelValues(result).Inc()
}

func IncPollFetch(result string) {
	pollFetches.WithLabelValues(result).Inc()
}

func IncOutcome(outcome string) {
	outcomes.WithLabelValues(outcome).Inc()
}

func IncPayment(result string) {
	payments.WithLabelValues(result).Inc()
}

func ObserveResolveDuration(d time.Duration) {
	resolveDuration.Observe(d.Seconds())
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
