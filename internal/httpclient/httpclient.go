// Package httpclient builds the shared HTTP clients used for resolver
// fetches, probing, and long-lived streaming reads.
package httpclient

import (
	"net/http"
	"time"
)

// Default returns an HTTP client with timeouts so that dead upstreams don't
// hang a resolve or probe call forever. Use for resolver fetches and probing.
func Default() *http.Client {
	return &http.Client{
		Timeout:   60 * time.Second,
		Transport: brotliTransport(baseTransport(30 * time.Second)),
	}
}

// ForStreaming returns a client with no overall timeout (a channel's source
// may be long-lived) but a ResponseHeaderTimeout so a dead upstream still
// fails fast enough for the broadcaster to advance to the next item.
func ForStreaming() *http.Client {
	return &http.Client{
		Transport: brotliTransport(baseTransport(90 * time.Second)),
	}
}

func baseTransport(idle time.Duration) *http.Transport {
	return &http.Transport{
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       idle,
	}
}
