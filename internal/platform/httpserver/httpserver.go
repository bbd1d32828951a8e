package httpserver

import (
	"net/http"
	"time"

	"farmshield/internal/platform/config"
)

// New builds an HTTP server with timeouts from configuration. Claim uploads
// carry several images, so the write timeout is longer than the header timeout.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}
