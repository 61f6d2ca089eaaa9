package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

func registerComm(r *Registry) {
	r.Register(Tool{
		Name:        "masc_broadcast",
		Category:    CategoryComm,
		Description: "Broadcast a message to every agent in the room.",
		Schema: schema(`{
			"type": "object",
			"properties": {
				"sender": {"type": "string"},
				"body": {"type": "string"},
				"priority": {"type": "string", "enum": ["low", "normal", "high"]},
				"kind": {"type": "string"}
			},
			"required": ["sender", "body"]
		}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			sender, err := stringArg(args, "sender")
			if err != nil {
				return nil, err
			}
			body, err := stringArg(args, "body")
			if err != nil {
				return nil, err
			}
			priority := room.Priority(optionalStringArg(args, "priority"))
			if priority == "" {
				priority = room.PriorityNormal
			}
			kind := room.MessageKind(optionalStringArg(args, "kind"))
			if kind == "" {
				kind = room.MessageBroadcast
			}
			return s.Broadcast(ctx, sender, body, priority, kind)
		},
	})

	r.Register(Tool{
		Name:        "masc_messages",
		Category:    CategoryComm,
		Description: "Read messages with seq greater than since_seq, oldest first.",
		Schema:      schema(`{"type":"object","properties":{"since_seq":{"type":"integer"},"limit":{"type":"integer"}}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			sinceSeq := int64(intArg(args, "since_seq", 0))
			limit := intArg(args, "limit", 0)
			return s.Messages(ctx, sinceSeq, limit)
		},
	})
}
