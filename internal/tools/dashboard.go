// Category "dashboard" mirrors part of the REST read surface
// (GET /api/v1/{status,tasks,agents,credits}; messages are not
// included) as tool calls,
// for clients that prefer tool-call access over REST
// (SPEC_FULL.md's supplemented-feature note).
package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
	"github.com/masc-dev/masc/internal/telemetry"
)

// DashboardSummary is the payload behind masc_dashboard_summary.
type DashboardSummary struct {
	Health  *HealthSnapshot      `json:"health"`
	Agents  []*room.Agent        `json:"agents"`
	Tasks   []*room.Task         `json:"tasks"`
	Credits []*telemetry.Credits `json:"credits"`
}

func registerDashboard(r *Registry) {
	r.Register(Tool{
		Name:        "masc_dashboard_summary",
		Category:    CategoryDashboard,
		Description: "Return a single read-only snapshot of room health, agents, tasks, and credits.",
		Schema:      schema(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			health, err := Health(ctx, s)
			if err != nil {
				return nil, err
			}
			agents, err := s.Agents(ctx)
			if err != nil {
				return nil, err
			}
			taskList, err := s.Tasks(ctx, "")
			if err != nil {
				return nil, err
			}
			events, err := telemetryEvents(ctx, s)
			if err != nil {
				return nil, err
			}
			creditMap := telemetry.AllCredits(events)
			credits := make([]*telemetry.Credits, 0, len(creditMap))
			for _, c := range creditMap {
				credits = append(credits, c)
			}
			return &DashboardSummary{Health: health, Agents: agents, Tasks: taskList, Credits: credits}, nil
		},
	})
}
