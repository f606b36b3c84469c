package middleware

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsInterceptor counts RPCs and observes their latency, labelled by
// procedure and Connect code ("ok" on success).
func MetricsInterceptor(reg prometheus.Registerer) connect.UnaryInterceptorFunc {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billdesk",
		Name:      "rpc_requests_total",
		Help:      "RPCs handled, by procedure and code.",
	}, []string{"procedure", "code"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "billdesk",
		Name:      "rpc_duration_seconds",
		Help:      "RPC latency, by procedure.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"procedure"})
	reg.MustRegister(requests, latency)

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			requests.WithLabelValues(procedure, code).Inc()
			latency.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}
