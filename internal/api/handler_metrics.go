package api

import (
	"net/http"

	"github.com/web3cache/web3cache/internal/metrics"
)

// HandleDeliveryMetrics exposes the ingestion and delivery counters.
func HandleDeliveryMetrics(collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, collector.Snapshot())
	}
}
