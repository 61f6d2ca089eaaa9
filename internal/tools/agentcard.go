package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

// AgentCard is the static self-description served at
// /.well-known/agent-card.json and by masc_a2a_describe, per
// SPEC_FULL.md's supplemented "Agent Card" feature: name, version,
// capabilities, transport bindings, and the tool category list.
type AgentCard struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	Bindings     []string `json:"bindings"`
	Categories   []string `json:"categories"`
}

// Version is the protocol/server version advertised by the Agent
// Card; bumped independently of the module's own release tags.
const Version = "1.0.0"

// BuildAgentCard assembles the static Agent Card from the tool
// registry's category list, not from a Room (the card describes the
// server, not one room's current mode).
func BuildAgentCard() AgentCard {
	categories := make([]string, 0, len(AllCategories))
	for _, c := range AllCategories {
		categories = append(categories, string(c))
	}
	return AgentCard{
		Name:    "masc",
		Version: Version,
		Capabilities: []string{
			"tool_dispatch", "sse_notifications", "handoff_capsules",
			"checkpoints", "fitness_selection", "drift_detection",
		},
		Bindings:   []string{"jsonrpc-http", "sse"},
		Categories: categories,
	}
}

func registerA2A(r *Registry) {
	r.Register(Tool{
		Name:        "masc_a2a_describe",
		Category:    CategoryA2A,
		Description: "Return this server's Agent Card for agent-to-agent discovery.",
		Schema:      schema(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			return BuildAgentCard(), nil
		},
	})
}
