package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AccountsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "accounts_registered_total",
		Help: "Accounts successfully registered",
	})

	ReferralsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referrals_applied_total",
		Help: "Registrations credited to an existing referral code",
	})

	ReferralCodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referral_code_collisions_total",
		Help: "Generated referral code candidates that were already taken",
	})
)
