package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PgErrCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bcal",
		Subsystem: "pg",
		Name:      "pg_err_count",
	}, []string{"method"})
	PgDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bcal",
		Subsystem: "pg",
		Name:      "pg_duration",
	}, []string{"method"})
	BookingOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bcal",
		Subsystem: "bookings",
		Name:      "outcome_count",
	}, []string{"outcome"})
	SlotQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bcal",
		Subsystem: "slots",
		Name:      "query_count",
	}, []string{"kind"})
)
