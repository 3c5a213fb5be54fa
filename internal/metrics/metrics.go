package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hilot",
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions by target status.",
		},
		[]string{"status"},
	)

	settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hilot",
			Name:      "settlements_total",
			Help:      "Completed booking settlements by payment method.",
		},
		[]string{"payment_method"},
	)

	ledgerPostings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hilot",
			Name:      "ledger_postings_total",
			Help:      "Wallet ledger postings by transaction type.",
		},
		[]string{"type"},
	)

	payouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hilot",
			Name:      "payouts_total",
			Help:      "Payout lifecycle events by resulting status.",
		},
		[]string{"status"},
	)

	acceptTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hilot",
			Name:      "accept_timeouts_total",
			Help:      "Pending bookings auto-rejected by the accept-timeout sweep.",
		},
	)

	sweepErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hilot",
			Name:      "sweep_errors_total",
			Help:      "Errors encountered by the accept-timeout sweep.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hilot",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingTransitions,
			settlements,
			ledgerPostings,
			payouts,
			acceptTimeouts,
			sweepErrors,
			httpRequests,
		)
	})
}

func IncBookingTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

func IncSettlement(paymentMethod string) {
	settlements.WithLabelValues(paymentMethod).Inc()
}

func IncLedgerPosting(trxType string) {
	ledgerPostings.WithLabelValues(trxType).Inc()
}

func IncPayout(status string) {
	payouts.WithLabelValues(status).Inc()
}

func IncAcceptTimeout() {
	acceptTimeouts.Inc()
}

func IncSweepError() {
	sweepErrors.Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
