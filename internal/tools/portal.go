package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

func registerPortal(r *Registry) {
	r.Register(Tool{
		Name:        "masc_portal_open",
		Category:    CategoryPortal,
		Description: "Open (or reuse) a direct private channel between two agents.",
		Schema:      schema(`{"type":"object","properties":{"agent_a":{"type":"string"},"agent_b":{"type":"string"}},"required":["agent_a","agent_b"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			a, err := stringArg(args, "agent_a")
			if err != nil {
				return nil, err
			}
			b, err := stringArg(args, "agent_b")
			if err != nil {
				return nil, err
			}
			return s.PortalOpen(ctx, a, b)
		},
	})

	r.Register(Tool{
		Name:        "masc_portal_send",
		Category:    CategoryPortal,
		Description: "Send a payload into a portal's inbox for the other participant.",
		Schema:      schema(`{"type":"object","properties":{"portal_id":{"type":"string"},"from":{"type":"string"},"payload":{"type":"string"}},"required":["portal_id","from","payload"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			portalID, err := stringArg(args, "portal_id")
			if err != nil {
				return nil, err
			}
			from, err := stringArg(args, "from")
			if err != nil {
				return nil, err
			}
			payload, err := stringArg(args, "payload")
			if err != nil {
				return nil, err
			}
			return nil, s.PortalSend(ctx, portalID, from, payload)
		},
	})

	r.Register(Tool{
		Name:        "masc_portal_close",
		Category:    CategoryPortal,
		Description: "Close a portal.",
		Schema:      schema(`{"type":"object","properties":{"portal_id":{"type":"string"}},"required":["portal_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			portalID, err := stringArg(args, "portal_id")
			if err != nil {
				return nil, err
			}
			return nil, s.PortalClose(ctx, portalID)
		},
	})
}
