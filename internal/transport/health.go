package transport

import (
	"net/http"

	"github.com/masc-dev/masc/internal/room"
	"github.com/masc-dev/masc/internal/tools"
)

// healthHandler serves GET /health, sharing tools.Health with
// masc_health so the tool-call and REST views never diverge.
func healthHandler(store *room.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := tools.Health(r.Context(), store)
		if err != nil {
			writeRESTError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// agentCardHandler serves GET /.well-known/agent-card.json, sharing
// tools.BuildAgentCard with masc_a2a_describe.
func agentCardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tools.BuildAgentCard())
	}
}
