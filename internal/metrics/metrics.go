package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "huntforge_queries_total",
		Help: "Total hint and name queries by kind and source",
	}, []string{"kind", "source"})
	QueryDurationUs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "huntforge_query_duration_us",
		Help:    "Query duration in microseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	}, []string{"kind"})
	EmptyResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "huntforge_empty_results_total",
		Help: "Total queries answered with an empty map",
	}, []string{"kind"})
	ResultSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "huntforge_hint_result_size",
		Help:    "Number of distinct hints returned per hint query",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
	})
	MissingNamesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "huntforge_missing_names_total",
		Help: "Hint ids skipped during resolution for lack of a name record",
	})
	WSSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "huntforge_ws_sessions",
		Help: "Open websocket sessions",
	})
	WSErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "huntforge_ws_errors_total",
		Help: "Websocket ERROR messages sent by code",
	}, []string{"code"})
	QueryLogDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "huntforge_query_log_dropped_total",
		Help: "Query log entries dropped by sink",
	}, []string{"sink"})
	MirrorUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "huntforge_mirror_uploads_total",
		Help: "Object storage mirror uploads by result",
	}, []string{"result"})
	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "huntforge_rate_limited_total",
		Help: "HTTP requests rejected by the rate limiter by backend",
	}, []string{"backend"})
	IndexInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "huntforge_index_entries",
		Help: "Size of the loaded hint index",
	}, []string{"table"})
)

func init() {
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDurationUs)
	prometheus.MustRegister(EmptyResultsTotal)
	prometheus.MustRegister(ResultSize)
	prometheus.MustRegister(MissingNamesTotal)
	prometheus.MustRegister(WSSessions)
	prometheus.MustRegister(WSErrorsTotal)
	prometheus.MustRegister(QueryLogDroppedTotal)
	prometheus.MustRegister(MirrorUploadsTotal)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(IndexInfo)
}

// Handler exposes the registered metrics; mounted at /metrics.
func Handler() http.Handler { return promhttp.Handler() }
