package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	donationSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giving",
		Name:      "donation_submissions_total",
		Help:      "Donation submissions by category and outcome.",
	}, []string{"category", "outcome"})

	donationAmountInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giving",
		Name:      "donation_amount_initiated_naira_total",
		Help:      "Sum of initiated donation totals in naira, test payments excluded.",
	}, []string{"category"})

	donationCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giving",
		Name:      "payment_callbacks_total",
		Help:      "Payment callbacks by reported status.",
	}, []string{"status"})

	notificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "giving",
		Name:      "notification_failures_total",
		Help:      "Donation receipts that could not be delivered.",
	})

	eventRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giving",
		Name:      "event_registrations_total",
		Help:      "Event registration attempts by operation and outcome.",
	}, []string{"operation", "outcome"})
)
