package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

func registerCore(r *Registry) {
	r.Register(Tool{
		Name:        "masc_join",
		Category:    CategoryCore,
		Description: "Join the room as an agent, or revive an existing one.",
		Schema: schema(`{
			"type": "object",
			"properties": {
				"agent_id": {"type": "string"},
				"capabilities": {"type": "array", "items": {"type": "string"}},
				"display_name": {"type": "string"}
			},
			"required": ["agent_id"]
		}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			a, err := s.Join(ctx, agentID, stringSliceArg(args, "capabilities"), optionalStringArg(args, "display_name"))
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})

	r.Register(Tool{
		Name:        "masc_leave",
		Category:    CategoryCore,
		Description: "Leave the room, releasing locks and claimed tasks.",
		Schema:      schema(`{"type":"object","properties":{"agent_id":{"type":"string"}},"required":["agent_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			return nil, s.Leave(ctx, agentID)
		},
	})

	r.Register(Tool{
		Name:        "masc_heartbeat",
		Category:    CategoryCore,
		Description: "Record a liveness heartbeat for an agent.",
		Schema:      schema(`{"type":"object","properties":{"agent_id":{"type":"string"}},"required":["agent_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			return nil, s.Heartbeat(ctx, agentID)
		},
	})

	r.Register(Tool{
		Name:        "masc_agents",
		Category:    CategoryCore,
		Description: "List every agent known to the room.",
		Schema:      schema(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			return s.Agents(ctx)
		},
	})

	r.Register(Tool{
		Name:        "masc_add_task",
		Category:    CategoryCore,
		Description: "Add a task to the queue.",
		Schema: schema(`{
			"type": "object",
			"properties": {
				"id": {"type": "string"},
				"title": {"type": "string"},
				"priority": {"type": "integer", "minimum": 1, "maximum": 5},
				"payload": {"type": "string"},
				"source": {"type": "string"},
				"required_capabilities": {"type": "array", "items": {"type": "string"}}
			},
			"required": ["title"]
		}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			title, err := stringArg(args, "title")
			if err != nil {
				return nil, err
			}
			priority := intArg(args, "priority", 3)
			t, err := s.AddTask(ctx, optionalStringArg(args, "id"), title, priority,
				optionalStringArg(args, "payload"), optionalStringArg(args, "source"),
				stringSliceArg(args, "required_capabilities"))
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	})

	r.Register(Tool{
		Name:        "masc_claim",
		Category:    CategoryCore,
		Description: "Claim a specific pending task.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"},"agent_id":{"type":"string"}},"required":["task_id","agent_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, err := stringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			return s.Claim(ctx, taskID, agentID)
		},
	})

	r.Register(Tool{
		Name:        "masc_claim_next",
		Category:    CategoryCore,
		Description: "Claim the highest-priority pending task whose required capabilities the agent satisfies.",
		Schema:      schema(`{"type":"object","properties":{"agent_id":{"type":"string"},"capabilities":{"type":"array","items":{"type":"string"}}},"required":["agent_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			return s.ClaimNext(ctx, agentID, stringSliceArg(args, "capabilities"))
		},
	})

	r.Register(Tool{
		Name:        "masc_start_progress",
		Category:    CategoryCore,
		Description: "Mark a claimed task in_progress.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"},"agent_id":{"type":"string"}},"required":["task_id","agent_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, err := stringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			return s.StartProgress(ctx, taskID, agentID)
		},
	})

	r.Register(Tool{
		Name:        "masc_done",
		Category:    CategoryCore,
		Description: "Mark a claimed task done.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"},"agent_id":{"type":"string"}},"required":["task_id","agent_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, err := stringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			return s.Done(ctx, taskID, agentID)
		},
	})

	r.Register(Tool{
		Name:        "masc_cancel_task",
		Category:    CategoryCore,
		Description: "Cancel a task from any non-terminal state.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"}},"required":["task_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, err := stringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			return s.CancelTask(ctx, taskID)
		},
	})

	r.Register(Tool{
		Name:        "masc_tasks",
		Category:    CategoryCore,
		Description: "List tasks, optionally filtered by status.",
		Schema:      schema(`{"type":"object","properties":{"status":{"type":"string"}}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			status := optionalStringArg(args, "status")
			return s.Tasks(ctx, room.TaskStatus(status))
		},
	})

	r.Register(Tool{
		Name:        "masc_lock",
		Category:    CategoryCore,
		Description: "Acquire an exclusive advisory lock on a file path.",
		Schema:      schema(`{"type":"object","properties":{"agent_id":{"type":"string"},"file_path":{"type":"string"},"ttl_seconds":{"type":"number"}},"required":["agent_id","file_path"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			path, err := stringArg(args, "file_path")
			if err != nil {
				return nil, err
			}
			ttl := float64Arg(args, "ttl_seconds", 0)
			return s.AcquireLock(ctx, agentID, path, secondsToDuration(ttl))
		},
	})

	r.Register(Tool{
		Name:        "masc_unlock",
		Category:    CategoryCore,
		Description: "Release a lock held by this agent.",
		Schema:      schema(`{"type":"object","properties":{"agent_id":{"type":"string"},"file_path":{"type":"string"}},"required":["agent_id","file_path"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			path, err := stringArg(args, "file_path")
			if err != nil {
				return nil, err
			}
			return nil, s.ReleaseLock(ctx, agentID, path)
		},
	})

	r.Register(Tool{
		Name:        "masc_locks",
		Category:    CategoryCore,
		Description: "List every held lock.",
		Schema:      schema(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			return s.Locks(ctx)
		},
	})
}
