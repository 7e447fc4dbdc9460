// Package netutil constructs the outbound HTTP clients used to reach
// subscriber webhooks and collaborating services.
package netutil

import (
	"net/http"
	"time"
)

const DefaultUserAgent = "web3cache/1.0"

// NewOutboundClient returns an HTTP client tuned for repeated posts to a
// small set of hosts. A zero timeout means no client-side deadline; callers
// that need one (webhook delivery) must pass it explicitly.
func NewOutboundClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
