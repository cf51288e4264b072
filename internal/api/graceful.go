package api

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// NewHTTPServer wraps a handler with the timeouts every listener in
// this project uses.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// SetupSignalHandler returns a channel that receives SIGINT and SIGTERM.
func SetupSignalHandler() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}
