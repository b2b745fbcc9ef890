package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tatkal-search/admission"
	"tatkal-search/cacheaside"
	"tatkal-search/store"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const dateLayout = "2006-01-02"

type searchResponse struct {
	Data    []store.Row       `json:"data"`
	Source  cacheaside.Source `json:"source"`
	Latency int64             `json:"latency"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Reason   string `json:"reason,omitempty"`
	Inflight *int64 `json:"inflight,omitempty"`
}

// Handler serves availability searches behind the admission controller.
type Handler struct {
	admission *admission.Controller
	reader    *cacheaside.Reader
	store     store.Store
	now       func() time.Time
}

func NewHandler(a *admission.Controller, r *cacheaside.Reader, s store.Store) *Handler {
	return &Handler{admission: a, reader: r, store: s, now: time.Now}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/search", h.search).Methods("GET")
}

func (h *Handler) search(w http.ResponseWriter, req *http.Request) {
	q, msg := h.parseQuery(req)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return
	}

	key := cacheaside.Key(q)
	var res *cacheaside.Result
	err := h.admission.Do(req.Context(), func(ctx context.Context) error {
		var err error
		res, err = h.reader.Read(ctx, key, func(ctx context.Context) ([]store.Row, error) {
			return h.store.Query(ctx, q)
		})
		return err
	})

	switch {
	case errors.Is(err, admission.ErrBusy):
		inflight := h.admission.Inflight()
		log.Warn().Str("key", key).Int64("inflight", inflight).Msg("api: rejected by backpressure")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "System busy", Reason: "backpressure", Inflight: &inflight})
	case err != nil:
		log.Error().Err(err).Str("key", key).Msg("api: search failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	default:
		writeJSON(w, http.StatusOK, searchResponse{Data: res.Data, Source: res.Source, Latency: res.Latency.Milliseconds()})
	}
}

// parseQuery returns a non-empty message when the request is not servable.
func (h *Handler) parseQuery(req *http.Request) (store.Query, string) {
	v := req.URL.Query()
	q := store.Query{
		Origin:      v.Get("from"),
		Destination: v.Get("to"),
		TravelDate:  v.Get("date"),
	}
	if q.Validate() != nil {
		return q, "Missing from/to parameters"
	}
	if q.TravelDate == "" {
		q.TravelDate = h.now().UTC().Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, q.TravelDate); err != nil {
		return q, "Invalid date parameter"
	}
	return q, ""
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("api: write response failed")
	}
}
