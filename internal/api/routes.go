package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler, logger zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger(logger))

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Stock routes
	api.HandleFunc("/stocks/{code}", handler.GetStock).Methods("GET")
	api.HandleFunc("/stocks/{code}/prices", handler.GetPriceHistory).Methods("GET")
	api.HandleFunc("/stocks/{code}/indicators", handler.GetIndicators).Methods("GET")
	api.HandleFunc("/stocks/{code}/signals", handler.GetSignals).Methods("GET")
	api.HandleFunc("/stocks/{code}/reports", handler.GetReports).Methods("GET")
	api.HandleFunc("/stocks/{code}/analyze", handler.AnalyzeStock).Methods("POST")

	// Watchlist routes
	api.HandleFunc("/watchlist", handler.GetWatchlist).Methods("GET")
	api.HandleFunc("/watchlist", handler.AddWatchItem).Methods("POST")
	api.HandleFunc("/watchlist/{code}", handler.GetWatchItem).Methods("GET")
	api.HandleFunc("/watchlist/{code}", handler.UpdateWatchItem).Methods("PATCH")
	api.HandleFunc("/watchlist/{code}", handler.RemoveWatchItem).Methods("DELETE")

	return r
}
