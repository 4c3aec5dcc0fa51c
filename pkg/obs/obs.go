// Package obs wires OpenCensus HTTP server metrics to a Prometheus exporter.
// It is a deliberately small slice of a full tracing stack: this service
// cares about request counts and latency, not distributed traces, so only
// the Prometheus metrics exporter is wired.
package obs

import (
	"fmt"
	"net/http"

	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/plugin/ochttp"
	"go.opencensus.io/stats/view"
)

// Init registers OpenCensus's default HTTP server views and returns an
// http.Handler serving them in Prometheus exposition format at /metrics.
func Init(serviceName string) (http.Handler, error) {
	if err := view.Register(
		ochttp.ServerRequestCountView,
		ochttp.ServerRequestBytesView,
		ochttp.ServerResponseBytesView,
		ochttp.ServerLatencyView,
		ochttp.ServerRequestCountByMethod,
		ochttp.ServerResponseCountByStatusCode,
	); err != nil {
		return nil, fmt.Errorf("register server views: %w", err)
	}

	exporter, err := prometheus.NewExporter(prometheus.Options{Namespace: serviceName})
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	view.RegisterExporter(exporter)

	return exporter, nil
}

// WrapHandler instruments h with OpenCensus HTTP server views so every
// request through it is counted and timed.
func WrapHandler(h http.Handler) http.Handler {
	return &ochttp.Handler{Handler: h}
}
