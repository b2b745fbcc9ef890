package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// NewRouter returns a router with request logging installed. Callers register routes on it.
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger)
	return r
}

// NewServer wraps handler with the timeouts used for the public listener.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
