package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var OrdersSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "grid_orders_submitted_total",
	Help: "Orders handed to the executor by mode and result",
}, []string{"mode", "result"})

var OrdersCanceled = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "grid_orders_canceled_total",
	Help: "Cancel requests by mode and result",
}, []string{"mode", "result"})

var DispatchBatches = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "grid_dispatch_batches_total",
	Help: "Finished dispatcher batches, labeled complete or partial",
}, []string{"outcome"})

var StreamState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "grid_stream_state",
	Help: "Current state of a streaming session (0 idle .. 4 closed)",
}, []string{"stream"})

var StreamReconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "grid_stream_reconnects_total",
	Help: "Scheduled reconnects per stream",
}, []string{"stream"})

var StreamDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "grid_stream_dropped_total",
	Help: "Events dropped because the consumer channel was full",
}, []string{"stream"})

var ListenKeyRenewalFailures = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "grid_listen_key_renewal_failures_total",
	Help: "Failed listen key keep-alive calls",
})

func init() {
	prometheus.MustRegister(
		OrdersSubmitted,
		OrdersCanceled,
		DispatchBatches,
		StreamState,
		StreamReconnects,
		StreamDropped,
		ListenKeyRenewalFailures,
	)
}

// Serve exposes /metrics on addr. It blocks like http.ListenAndServe.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
