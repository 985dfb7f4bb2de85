package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMetricsHandler returns the Prometheus scrape handler. A nil exporter
// handler falls back to the default registry.
func NewMetricsHandler(exporter http.Handler) http.Handler {
	if exporter != nil {
		return exporter
	}
	return promhttp.Handler()
}
