package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup kinds
const (
	KindQuery    = "query"
	KindItem     = "item"
	KindColumnID = "column_id"
	KindMeta     = "meta"
)

// Lookup results
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

var (
	// RequestsTotal counts cache lookups by table, kind and result.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablequery_cache_requests_total",
			Help: "Total number of result cache lookups",
		},
		[]string{"table", "kind", "result"},
	)
	// BumpsTotal counts "last changed" token bumps by table.
	BumpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablequery_cache_bumps_total",
			Help: "Total number of last changed token bumps",
		},
		[]string{"table"},
	)
)
