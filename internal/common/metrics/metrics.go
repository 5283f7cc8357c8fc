// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_submissions_completed_total",
			Help: "Total number of form submissions forwarded to the CRM successfully",
		},
	)

	SubmissionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_submissions_rejected_total",
			Help: "Total number of form submissions rejected before the CRM call",
		},
		[]string{"reason"},
	)

	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "gateway_submission_duration_seconds",
			Help: "Duration of submission processing in seconds",
		},
	)

	SubmissionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_submissions_active",
			Help: "Number of submissions currently being processed",
		},
	)

	CRMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_crm_requests_total",
			Help: "Total number of CRM lead-add calls by outcome",
		},
		[]string{"outcome"},
	)

	TokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_csrf_tokens_issued_total",
			Help: "Total number of freshly generated CSRF tokens",
		},
	)
)

// Rejection reasons used as the "reason" label value.
const (
	ReasonRateLimited = "rate_limited"
	ReasonCSRF        = "csrf"
	ReasonValidation  = "validation"
	ReasonConfig      = "config"
)

// CRM call outcomes used as the "outcome" label value.
const (
	OutcomeSuccess   = "success"
	OutcomeAPIError  = "api_error"
	OutcomeTransport = "transport_error"
)
