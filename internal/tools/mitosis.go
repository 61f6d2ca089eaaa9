// Category "mitosis" is the active-duplication counterpart to
// "cellular" (spec.md §1's "handoff ('cellular division')"): instead
// of one agent yielding entirely to a successor, mitosis spawns a new
// sibling agent that inherits a capsule of shared context while the
// parent keeps working. Built from the same two primitives (Join,
// HandoffCreate) the cellular category uses, composed for this
// distinct workflow.
package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

func registerMitosis(r *Registry) {
	r.Register(Tool{
		Name:        "masc_mitosis_spawn",
		Category:    CategoryMitosis,
		Description: "Spawn a sibling agent and hand it a capsule of the parent's current context.",
		Schema: schema(`{
			"type": "object",
			"properties": {
				"parent_agent": {"type": "string"},
				"child_agent": {"type": "string"},
				"capabilities": {"type": "array", "items": {"type": "string"}},
				"goal": {"type": "string"},
				"progress_summary": {"type": "string"},
				"task_id": {"type": "string"}
			},
			"required": ["parent_agent", "child_agent", "goal"]
		}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			parent, err := stringArg(args, "parent_agent")
			if err != nil {
				return nil, err
			}
			child, err := stringArg(args, "child_agent")
			if err != nil {
				return nil, err
			}
			goal, err := stringArg(args, "goal")
			if err != nil {
				return nil, err
			}

			childAgent, err := s.Join(ctx, child, stringSliceArg(args, "capabilities"), "")
			if err != nil {
				return nil, err
			}

			capsule, err := s.HandoffCreate(ctx, &room.Handoff{
				FromAgent:       parent,
				ToAgent:         child,
				TaskID:          optionalStringArg(args, "task_id"),
				Reason:          room.HandoffExplicit,
				Goal:            goal,
				ProgressSummary: optionalStringArg(args, "progress_summary"),
			})
			if err != nil {
				return nil, err
			}

			claimed, err := s.HandoffClaim(ctx, capsule.ID, child)
			if err != nil {
				return nil, err
			}

			return struct {
				Child   *room.Agent   `json:"child"`
				Capsule *room.Handoff `json:"capsule"`
			}{childAgent, claimed}, nil
		},
	})
}
