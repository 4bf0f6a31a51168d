package httpclient

import (
	"net/http"
	"time"
)

// sharedTransport is reused by every pooled client so outbound provider
// calls share one connection pool instead of re-handshaking per request.
var sharedTransport = &http.Transport{
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     120 * time.Second,
	DisableKeepAlives:   false,
}

// NewPooledClient returns an http.Client backed by the shared transport.
// Timeout is the hard cap per request; per-call deadlines still come from
// the request context.
func NewPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
	}
}
