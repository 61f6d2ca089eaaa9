package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

// HealthSnapshot is the payload behind both masc_health and the REST
// GET /health endpoint.
type HealthSnapshot struct {
	RoomID       string `json:"room_id"`
	Paused       bool   `json:"paused"`
	AgentCount   int    `json:"agent_count"`
	PendingTasks int    `json:"pending_tasks"`
}

// Health computes a HealthSnapshot directly from a Store, shared by
// the masc_health tool and internal/transport's /health handler.
func Health(ctx context.Context, s *room.Store) (*HealthSnapshot, error) {
	info, err := s.RoomInfo(ctx)
	if err != nil {
		return nil, err
	}
	agents, err := s.Agents(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.Tasks(ctx, room.TaskPending)
	if err != nil {
		return nil, err
	}
	return &HealthSnapshot{
		RoomID:       s.RoomID(),
		Paused:       info.Paused,
		AgentCount:   len(agents),
		PendingTasks: len(pending),
	}, nil
}

func registerHealth(r *Registry) {
	r.Register(Tool{
		Name:        "masc_health",
		Category:    CategoryHealth,
		Description: "Report a lightweight health snapshot of the room.",
		Schema:      schema(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			return Health(ctx, s)
		},
	})

	r.Register(Tool{
		Name:        "masc_agent_status",
		Category:    CategoryHealth,
		Description: "Report one agent's current status.",
		Schema:      schema(`{"type":"object","properties":{"agent_id":{"type":"string"}},"required":["agent_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			return s.Agent(ctx, agentID)
		},
	})
}
