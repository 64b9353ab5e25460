// Package adminhttp exposes a small diagnostics/health HTTP surface over
// the server's connection table and lifecycle state, grounded on the
// teacher's internal/net/http_handlers.go manual-routing style but
// upgraded to github.com/go-chi/chi/v5, per the domain-stack rule: only
// the router changes, the handlers stay small and directly testable.
package adminhttp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bitwire/server/server"
)

// NewRouter builds the chi router serving /healthz, /connections, and
// /stats against srv.
func NewRouter(srv *server.Server) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/healthz", healthzHandler(srv))
	r.Get("/connections", connectionsHandler(srv))
	r.Get("/stats", statsHandler(srv))
	return r
}

func healthzHandler(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if srv.State() != server.StateActive {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"state": srv.State().String()})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"state": srv.State().String()})
	}
}

func connectionsHandler(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(srv.Snapshot())
	}
}

type statsResponse struct {
	Connections int `json:"connections"`
	Spawned     int `json:"spawned"`
}

func statsHandler(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(statsResponse{
			Connections: srv.ConnectionCount(),
			Spawned:     srv.SpawnedCount(),
		})
	}
}
