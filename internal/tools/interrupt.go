// Category "interrupt" covers the checkpoint state machine
// (spec.md §4.2/§8): human-in-the-loop interrupt/approve/reject/
// branch/revert control over a task's durable workflow steps.
package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

func registerInterrupt(r *Registry) {
	r.Register(Tool{
		Name:        "masc_checkpoint_save",
		Category:    CategoryInterrupt,
		Description: "Save a new workflow checkpoint for a task.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"},"state_json":{"type":"string"},"step":{"type":"integer"}},"required":["task_id","state_json","step"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, err := stringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			state, err := stringArg(args, "state_json")
			if err != nil {
				return nil, err
			}
			return s.CheckpointSave(ctx, taskID, state, intArg(args, "step", 0))
		},
	})

	r.Register(Tool{
		Name:        "masc_checkpoint_interrupt",
		Category:    CategoryInterrupt,
		Description: "Interrupt an in-progress checkpoint for human review.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"},"checkpoint_id":{"type":"string"},"message":{"type":"string"}},"required":["task_id","checkpoint_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, id, err := taskAndCheckpointID(args)
			if err != nil {
				return nil, err
			}
			return s.CheckpointInterrupt(ctx, taskID, id, optionalStringArg(args, "message"))
		},
	})

	r.Register(Tool{
		Name:        "masc_checkpoint_approve",
		Category:    CategoryInterrupt,
		Description: "Approve an interrupted checkpoint, completing it.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"},"checkpoint_id":{"type":"string"}},"required":["task_id","checkpoint_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, id, err := taskAndCheckpointID(args)
			if err != nil {
				return nil, err
			}
			return s.CheckpointApprove(ctx, taskID, id)
		},
	})

	r.Register(Tool{
		Name:        "masc_checkpoint_reject",
		Category:    CategoryInterrupt,
		Description: "Reject an interrupted checkpoint.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"},"checkpoint_id":{"type":"string"},"reason":{"type":"string"}},"required":["task_id","checkpoint_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, id, err := taskAndCheckpointID(args)
			if err != nil {
				return nil, err
			}
			return s.CheckpointReject(ctx, taskID, id, optionalStringArg(args, "reason"))
		},
	})

	r.Register(Tool{
		Name:        "masc_checkpoint_branch",
		Category:    CategoryInterrupt,
		Description: "Fork an interrupted checkpoint into a new branch, cloning its state.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"},"checkpoint_id":{"type":"string"},"branch_name":{"type":"string"}},"required":["task_id","checkpoint_id","branch_name"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, id, err := taskAndCheckpointID(args)
			if err != nil {
				return nil, err
			}
			branchName, err := stringArg(args, "branch_name")
			if err != nil {
				return nil, err
			}
			return s.CheckpointBranch(ctx, taskID, id, branchName)
		},
	})

	r.Register(Tool{
		Name:        "masc_checkpoint_revert",
		Category:    CategoryInterrupt,
		Description: "Revert a checkpoint from any non-terminal state.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"},"checkpoint_id":{"type":"string"}},"required":["task_id","checkpoint_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, id, err := taskAndCheckpointID(args)
			if err != nil {
				return nil, err
			}
			return s.CheckpointRevert(ctx, taskID, id)
		},
	})

	r.Register(Tool{
		Name:        "masc_checkpoints",
		Category:    CategoryInterrupt,
		Description: "List every checkpoint recorded for a task.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"}},"required":["task_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, err := stringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			return s.Checkpoints(ctx, taskID)
		},
	})
}

func taskAndCheckpointID(args map[string]any) (taskID, checkpointID string, err error) {
	taskID, err = stringArg(args, "task_id")
	if err != nil {
		return "", "", err
	}
	checkpointID, err = stringArg(args, "checkpoint_id")
	if err != nil {
		return "", "", err
	}
	return taskID, checkpointID, nil
}
