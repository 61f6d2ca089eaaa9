// Category "cost" surfaces masc_credits — a per-agent running
// request/token counter read off the telemetry log, per SPEC_FULL.md's
// supplemented-feature note (no external LLM billing integration).
package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
	"github.com/masc-dev/masc/internal/telemetry"
)

func registerCost(r *Registry) {
	r.Register(Tool{
		Name:        "masc_credits",
		Category:    CategoryCost,
		Description: "Report per-agent tool-call counts derived from telemetry.",
		Schema:      schema(`{"type":"object","properties":{"agent_id":{"type":"string"}}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			events, err := telemetryEvents(ctx, s)
			if err != nil {
				return nil, err
			}
			all := telemetry.AllCredits(events)
			if agentID := optionalStringArg(args, "agent_id"); agentID != "" {
				if c, ok := all[agentID]; ok {
					return c, nil
				}
				return &telemetry.Credits{AgentID: agentID}, nil
			}
			out := make([]*telemetry.Credits, 0, len(all))
			for _, c := range all {
				out = append(out, c)
			}
			return out, nil
		},
	})
}
