// Package router assembles the HTTP mux: middleware order is request ID,
// then access logging, then auth, then the route handlers.
package router

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	v1 "github.com/seriarr/seriarr/api/v1"
	"github.com/seriarr/seriarr/internal/auth"
)

// New builds the full route table around the v1 handler set.
func New(h *v1.Handler, log *slog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(v1.RequestID)
	r.Use(v1.AccessLog(log))
	r.Use(auth.Middleware)

	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/sources", h.Sources).Methods(http.MethodGet)
	api.HandleFunc("/sources/{id}/search", h.Search).Methods(http.MethodGet)
	api.HandleFunc("/sources/{id}/browse", h.Browse).Methods(http.MethodGet)
	api.HandleFunc("/sources/{id}/detail", h.Detail).Methods(http.MethodGet)

	api.HandleFunc("/acquisitions", h.CreateAcquisition).Methods(http.MethodPost)
	api.HandleFunc("/acquisitions", h.ListAcquisitions).Methods(http.MethodGet)
	api.HandleFunc("/acquisitions/{runId}", h.GetAcquisition).Methods(http.MethodGet)

	api.HandleFunc("/items/{itemId}/state", h.GetState).Methods(http.MethodGet)
	api.HandleFunc("/items/{itemId}/export", h.Export).Methods(http.MethodPost)

	api.HandleFunc("/grabs", h.CreateGrab).Methods(http.MethodPost)

	return r
}
