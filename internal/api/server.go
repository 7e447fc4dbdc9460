package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/web3cache/web3cache/internal/ingest"
	"github.com/web3cache/web3cache/internal/metrics"
	"github.com/web3cache/web3cache/internal/replay"
)

// Server wraps the HTTP server and mux for the consumer-facing API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates the API server wired with all routes.
// replaySvc and collector may be nil; their routes are then omitted.
func NewServer(
	listenAddress string,
	port int,
	apiMaxBodyBytes int64,
	ingestSvc *ingest.Service,
	subs SubscriptionFinder,
	replaySvc *replay.Service,
	collector *metrics.Collector,
) *Server {
	mux := http.NewServeMux()

	mux.Handle("GET /healthcheck", HandleHealthcheck())
	mux.Handle("POST /push-transactions", HandlePushTransactions(ingestSvc))

	if replaySvc != nil {
		mux.Handle("POST /api/v1/subscriptions/{id}/actions/replay", HandleReplaySubscription(subs, replaySvc))
	}
	if collector != nil {
		mux.Handle("GET /api/v1/metrics/delivery", HandleDeliveryMetrics(collector))
	}

	srv := &http.Server{
		Addr:    net.JoinHostPort(listenAddress, strconv.Itoa(port)),
		Handler: RequestBodyLimitMiddleware(apiMaxBodyBytes, mux),
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}
