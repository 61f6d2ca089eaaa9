package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

func registerTempo(r *Registry) {
	r.Register(Tool{
		Name:        "masc_tempo_get",
		Category:    CategoryTempo,
		Description: "Read the room's current background-loop interval.",
		Schema:      schema(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			return s.RoomInfo(ctx)
		},
	})

	r.Register(Tool{
		Name:        "masc_tempo_set",
		Category:    CategoryTempo,
		Description: "Set the room's stored background-loop interval, in seconds; the supervisor replaces it at its next tempo recalculation.",
		Schema:      schema(`{"type":"object","properties":{"seconds":{"type":"number","minimum":5,"maximum":300}},"required":["seconds"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			seconds := float64Arg(args, "seconds", 30)
			return s.SetTempo(ctx, seconds)
		},
	})

	r.Register(Tool{
		Name:        "masc_pause",
		Category:    CategoryTempo,
		Description: "Pause the room, refusing further mutating tool calls until resumed.",
		Schema:      schema(`{"type":"object","properties":{"reason":{"type":"string"}}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			return s.Pause(ctx, optionalStringArg(args, "reason"))
		},
	})

	r.Register(Tool{
		Name:        "masc_resume",
		Category:    CategoryTempo,
		Description: "Resume a paused room.",
		Schema:      schema(`{"type":"object","properties":{}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			return s.Resume(ctx)
		},
	})
}
