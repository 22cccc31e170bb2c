package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce       sync.Once
	checkoutTotal     *prometheus.CounterVec
	confirmPollsTotal prometheus.Counter
	planChangesTotal  *prometheus.CounterVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		checkoutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ott_membership",
			Subsystem: "payments",
			Name:      "checkout_total",
			Help:      "Total checkout attempts by gateway and outcome",
		}, []string{"gateway", "outcome"})

		confirmPollsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "ott_membership",
			Subsystem: "payments",
			Name:      "confirmation_polls_total",
			Help:      "Total payment status poll requests issued",
		})

		planChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ott_membership",
			Subsystem: "payments",
			Name:      "plan_changes_total",
			Help:      "Total plan change requests by decision",
		}, []string{"decision"})
	})
}

// Checkout outcomes.
const (
	OutcomeConfirmed   = "confirmed"
	OutcomeUnconfirmed = "unconfirmed"
	OutcomeFailed      = "failed"
	OutcomeError       = "error"
)

func ObserveCheckout(gateway, outcome string) {
	initMetrics()
	checkoutTotal.WithLabelValues(gateway, outcome).Inc()
}

func ObserveConfirmationPoll() {
	initMetrics()
	confirmPollsTotal.Inc()
}

func ObservePlanChange(decision string) {
	initMetrics()
	planChangesTotal.WithLabelValues(decision).Inc()
}
