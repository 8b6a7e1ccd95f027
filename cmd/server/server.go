// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/api"
	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/api/matches"
	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/config"
	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/match"
)

const shutdownTimeout = 30 * time.Second

func newServer(cfg *config.Config, manager *match.Manager) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	matches.InitHandlers(manager)
	registerRoutes(router)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Live match scouting
	mux.HandleFunc("GET /api/v1/matches/{id}/state", matches.HandleMatchState)
	mux.HandleFunc("POST /api/v1/matches/{id}/actions", matches.HandleCaptureAction)
	mux.HandleFunc("POST /api/v1/matches/{id}/events", matches.HandleAppendEvent)
	mux.HandleFunc("DELETE /api/v1/matches/{id}/events", matches.HandleTruncateEvents)
	mux.HandleFunc("GET /api/v1/matches/{id}/timeline", matches.HandleTimeline)
	mux.HandleFunc("GET /api/v1/matches/{id}/analytics", matches.HandleAnalytics)
	mux.HandleFunc("POST /api/v1/matches/{id}/substitutions/validate", matches.HandleValidateSubstitution)
	mux.HandleFunc("POST /api/v1/matches/{id}/substitutions/batch", matches.HandleQueueSubstitution)
	mux.HandleFunc("GET /api/v1/matches/{id}/substitutions/batch", matches.HandlePlannedQueue)
	mux.HandleFunc("DELETE /api/v1/matches/{id}/substitutions/batch", matches.HandleClearQueue)
	mux.HandleFunc("POST /api/v1/matches/{id}/substitutions/commit", matches.HandleCommitSubstitutions)
	mux.HandleFunc("POST /api/v1/matches/{id}/summary/dismiss", matches.HandleDismissSummary)
}
