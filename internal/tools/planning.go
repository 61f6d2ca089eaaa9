// Category "planning" lets an agent persist a multi-step plan for a
// task ahead of execution. Modeled on top of the cache primitive
// (tagged "plan") rather than a new entity, since a plan is simply a
// named, retrievable JSON blob scoped to a task — spec.md's Data Model
// has no dedicated Plan entity.
package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

const planCacheTag = "plan"

func planCacheKey(taskID string) string { return "plan:" + taskID }

func registerPlanning(r *Registry) {
	r.Register(Tool{
		Name:        "masc_plan_save",
		Category:    CategoryPlanning,
		Description: "Save a task's step-by-step plan as JSON.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"},"plan_json":{"type":"string"}},"required":["task_id","plan_json"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, err := stringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			plan, err := stringArg(args, "plan_json")
			if err != nil {
				return nil, err
			}
			return s.CacheSet(ctx, planCacheKey(taskID), plan, 0, []string{planCacheTag})
		},
	})

	r.Register(Tool{
		Name:        "masc_plan_get",
		Category:    CategoryPlanning,
		Description: "Read a task's saved plan.",
		Schema:      schema(`{"type":"object","properties":{"task_id":{"type":"string"}},"required":["task_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			taskID, err := stringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			return s.CacheGet(ctx, planCacheKey(taskID))
		},
	})

	r.Register(Tool{
		Name:        "masc_plans",
		Category:    CategoryPlanning,
		Description: "List every saved plan.",
		Schema:      schema(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			return s.CacheList(ctx, planCacheTag)
		},
	})
}
