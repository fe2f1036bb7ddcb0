package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opQuery  = "query"
	opScalar = "scalar"
	opExec   = "exec"

	resultOK    = "ok"
	resultError = "error"
)

var (
	// StatementsTotal counts statements by operation and result.
	StatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablequery_gateway_statements_total",
			Help: "Total number of statements sent to the database",
		},
		[]string{"op", "result"},
	)
	// StatementDuration is the latency of statements.
	StatementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablequery_gateway_statement_duration_seconds",
			Help:    "Statement latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func observe(op, result string, start time.Time) {
	StatementsTotal.WithLabelValues(op, result).Inc()
	StatementDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
