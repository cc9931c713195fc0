package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes for the API server
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// API v1 endpoints
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/slots", s.handleSlots).Methods(http.MethodGet)
	v1.HandleFunc("/slots/{slot}", s.handleSlot).Methods(http.MethodGet)
	v1.HandleFunc("/events/{type}", s.handleEvents).Methods(http.MethodGet)
	v1.HandleFunc("/commands", s.handleCommandCatalog).Methods(http.MethodGet)
	v1.HandleFunc("/commands", s.handleSubmitCommand).Methods(http.MethodPost)
	v1.HandleFunc("/commands/{id}", s.handleCommandStatus).Methods(http.MethodGet)

	return r
}
