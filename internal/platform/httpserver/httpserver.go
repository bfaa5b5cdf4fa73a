// Package httpserver builds the process's HTTP server, sized for document
// image uploads arriving as base64 JSON bodies.
package httpserver

import (
	"net/http"
	"time"
)

// A 10MB image grows to roughly 14MB once base64-encoded, so the body cap
// sits above that with headroom. The write timeout must outlast a full
// model-fallback walk in the vision stage, including backoff sleeps.
const (
	maxBodyBytes   = 16 << 20
	readTimeout    = 60 * time.Second
	writeTimeout   = 120 * time.Second
	idleTimeout    = 120 * time.Second
	maxHeaderBytes = 1 << 20
)

// New builds an HTTP server for the verification API. The handler is
// wrapped with a request body cap so oversized uploads fail at the edge
// instead of buffering into the quality prefilter.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           http.MaxBytesHandler(handler, maxBodyBytes),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}
}
