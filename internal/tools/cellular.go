// Category "cellular" is spec.md §1's parenthetical "handoff ('cellular
// division')": the DNA capsule lifecycle (create/claim/consume/get).
package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

func registerCellular(r *Registry) {
	r.Register(Tool{
		Name:        "masc_handoff_create",
		Category:    CategoryCellular,
		Description: "Create a handoff capsule transferring context to a successor agent.",
		Schema: schema(`{
			"type": "object",
			"properties": {
				"from_agent": {"type": "string"},
				"to_agent": {"type": "string"},
				"task_id": {"type": "string"},
				"reason": {"type": "string", "enum": ["context_limit", "timeout", "explicit", "fatal_error", "task_complete"]},
				"context_pct": {"type": "number"},
				"goal": {"type": "string"},
				"progress_summary": {"type": "string"},
				"completed_steps": {"type": "array", "items": {"type": "string"}},
				"pending_steps": {"type": "array", "items": {"type": "string"}},
				"key_decisions": {"type": "array", "items": {"type": "string"}},
				"assumptions": {"type": "array", "items": {"type": "string"}},
				"warnings": {"type": "array", "items": {"type": "string"}},
				"unresolved_errors": {"type": "array", "items": {"type": "string"}},
				"modified_files": {"type": "array", "items": {"type": "string"}}
			},
			"required": ["from_agent", "goal"]
		}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			fromAgent, err := stringArg(args, "from_agent")
			if err != nil {
				return nil, err
			}
			goal, err := stringArg(args, "goal")
			if err != nil {
				return nil, err
			}
			reason := room.HandoffReason(optionalStringArg(args, "reason"))
			if reason == "" {
				reason = room.HandoffExplicit
			}
			h := &room.Handoff{
				FromAgent:        fromAgent,
				ToAgent:          optionalStringArg(args, "to_agent"),
				TaskID:           optionalStringArg(args, "task_id"),
				Reason:           reason,
				ContextPct:       float64Arg(args, "context_pct", 0),
				Goal:             goal,
				ProgressSummary:  optionalStringArg(args, "progress_summary"),
				CompletedSteps:   stringSliceArg(args, "completed_steps"),
				PendingSteps:     stringSliceArg(args, "pending_steps"),
				KeyDecisions:     stringSliceArg(args, "key_decisions"),
				Assumptions:      stringSliceArg(args, "assumptions"),
				Warnings:         stringSliceArg(args, "warnings"),
				UnresolvedErrors: stringSliceArg(args, "unresolved_errors"),
				ModifiedFiles:    stringSliceArg(args, "modified_files"),
			}
			return s.HandoffCreate(ctx, h)
		},
	})

	r.Register(Tool{
		Name:        "masc_handoff_claim",
		Category:    CategoryCellular,
		Description: "Claim a pending handoff capsule as its successor.",
		Schema:      schema(`{"type":"object","properties":{"handoff_id":{"type":"string"},"agent_id":{"type":"string"}},"required":["handoff_id","agent_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			id, err := stringArg(args, "handoff_id")
			if err != nil {
				return nil, err
			}
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			return s.HandoffClaim(ctx, id, agentID)
		},
	})

	r.Register(Tool{
		Name:        "masc_handoff_consume",
		Category:    CategoryCellular,
		Description: "Mark a claimed handoff capsule consumed.",
		Schema:      schema(`{"type":"object","properties":{"handoff_id":{"type":"string"},"agent_id":{"type":"string"}},"required":["handoff_id","agent_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			id, err := stringArg(args, "handoff_id")
			if err != nil {
				return nil, err
			}
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			return s.HandoffConsume(ctx, id, agentID)
		},
	})

	r.Register(Tool{
		Name:        "masc_handoff_get",
		Category:    CategoryCellular,
		Description: "Read a handoff capsule as a markdown prompt plus structured fields.",
		Schema:      schema(`{"type":"object","properties":{"handoff_id":{"type":"string"}},"required":["handoff_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			id, err := stringArg(args, "handoff_id")
			if err != nil {
				return nil, err
			}
			h, prompt, err := s.HandoffGet(ctx, id)
			if err != nil {
				return nil, err
			}
			return struct {
				Handoff *room.Handoff `json:"handoff"`
				Prompt  string        `json:"prompt"`
			}{h, prompt}, nil
		},
	})

	r.Register(Tool{
		Name:        "masc_handoffs",
		Category:    CategoryCellular,
		Description: "List handoff capsules, optionally filtered by status.",
		Schema:      schema(`{"type":"object","properties":{"status":{"type":"string"}}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			return s.Handoffs(ctx, room.HandoffStatus(optionalStringArg(args, "status")))
		},
	})
}
