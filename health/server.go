package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Info is the static configuration echoed by /health.
type Info struct {
	MaxInflight     int  `json:"maxInflight"`
	CacheTTLSeconds int  `json:"cacheTtlSeconds"`
	CacheEnabled    bool `json:"cacheEnabled"`
}

type InflightReporter interface {
	Inflight() int64
}

// Pinger is a backend that must answer for the service to be ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type report struct {
	Status   string `json:"status"`
	Config   Info   `json:"config"`
	Inflight int64  `json:"inflight"`
}

func Register(r *mux.Router, info Info, inflight InflightReporter, deps ...Pinger) {
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(report{Status: "ok", Config: info, Inflight: inflight.Inflight()})
	}).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	r.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		for _, d := range deps {
			if err := d.Ping(ctx); err != nil {
				log.Warn().Err(err).Msg("health: dependency not ready")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("not ready"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}).Methods("GET")
}
