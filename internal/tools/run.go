// Category "run" would execute shell/worktree commands on an agent's
// behalf. Actual process execution is explicitly out of scope
// (spec.md §1: "git/worktree shell operations, called but not
// re-specified") — MASC only records that a run was requested and
// leaves execution to the calling client.
package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

func registerRun(r *Registry) {
	r.Register(Tool{
		Name:        "masc_run_command",
		Category:    CategoryRun,
		Description: "Record that an agent is about to run a shell command; MASC does not execute it.",
		Schema:      schema(`{"type":"object","properties":{"agent_id":{"type":"string"},"command":{"type":"string"}},"required":["agent_id","command"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			command, err := stringArg(args, "command")
			if err != nil {
				return nil, err
			}
			if rec := s.Telemetry(); rec != nil {
				_ = rec.Record(ctx, "tool_called", agentID, map[string]any{
					"tool":    "masc_run_command",
					"command": command,
				})
			}
			return struct {
				Delegated bool `json:"delegated"`
			}{true}, nil
		},
	})
}
