package metrics

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tatkal_inflight_requests",
			Help: "Requests currently holding an admission permit",
		},
	)

	AdmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tatkal_admissions_total",
			Help: "Admission decisions",
		},
		[]string{"result"}, // admitted|rejected
	)

	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tatkal_lookups_total",
			Help: "Completed availability lookups by source",
		},
		[]string{"source"}, // cache|store|error
	)

	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tatkal_cache_errors_total",
			Help: "Cache faults absorbed by the read path",
		},
		[]string{"op"}, // get|set|decode|delete
	)

	StoreDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tatkal_store_query_duration_seconds",
			Help:    "Duration of backing store queries",
			Buckets: prometheus.DefBuckets,
		},
	)

	InvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tatkal_invalidations_total",
			Help: "Invalidation feed messages by outcome",
		},
		[]string{"result"}, // applied|invalid|failed
	)
)

func init() {
	prometheus.MustRegister(Inflight)
	prometheus.MustRegister(AdmissionsTotal)
	prometheus.MustRegister(LookupsTotal)
	prometheus.MustRegister(CacheErrorsTotal)
	prometheus.MustRegister(StoreDuration)
	prometheus.MustRegister(InvalidationsTotal)
}

func Register(r *mux.Router) {
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}
