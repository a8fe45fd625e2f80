package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RPCCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowmap_rpc_calls_total",
		Help: "JSON-RPC calls issued, by method and outcome",
	}, []string{"method", "status"})

	EventsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowmap_events_fetched_total",
		Help: "Transfer logs returned by eth_getLogs, by period",
	}, []string{"period"})

	ReportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowmap_reports_generated_total",
		Help: "Flow reports generated, by period",
	}, []string{"period"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flowmap_run_duration_seconds",
		Help:    "Full fetch+aggregate duration per period",
		Buckets: prometheus.DefBuckets,
	}, []string{"period"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
