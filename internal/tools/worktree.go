// Category "worktree" bookkeeps which git worktree an agent occupies.
// The worktree's contents and any shell commands run inside it are
// opaque to MASC (spec.md §1); these tools only record and report the
// association.
package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

func registerWorktree(r *Registry) {
	r.Register(Tool{
		Name:        "masc_set_worktree",
		Category:    CategoryWorktree,
		Description: "Record the worktree path an agent is currently operating in.",
		Schema:      schema(`{"type":"object","properties":{"agent_id":{"type":"string"},"worktree":{"type":"string"}},"required":["agent_id","worktree"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			worktree, err := stringArg(args, "worktree")
			if err != nil {
				return nil, err
			}
			return s.SetWorktree(ctx, agentID, worktree)
		},
	})

	r.Register(Tool{
		Name:        "masc_worktree_status",
		Category:    CategoryWorktree,
		Description: "Report the worktree currently associated with an agent.",
		Schema:      schema(`{"type":"object","properties":{"agent_id":{"type":"string"}},"required":["agent_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			a, err := s.Agent(ctx, agentID)
			if err != nil {
				return nil, err
			}
			return struct {
				AgentID  string `json:"agent_id"`
				Worktree string `json:"worktree"`
			}{a.ID, a.CurrentWorktree}, nil
		},
	})
}
