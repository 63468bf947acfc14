package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// commentOps counts comment operations by kind and outcome. Outcomes are a
// small fixed set so the series count stays bounded.
var commentOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "comments_operations_total",
		Help: "Comment store operations by kind and outcome.",
	},
	[]string{"op", "outcome"},
)

func init() {
	prometheus.MustRegister(commentOps)
}

// observe records the outcome of one comment operation.
func observe(op string, err error) {
	commentOps.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrServiceNotFound),
		errors.Is(err, ErrCommentNotFound),
		errors.Is(err, ErrParentNotFound):
		return "not_found"
	case IsValidation(err):
		return "invalid"
	default:
		return "error"
	}
}
