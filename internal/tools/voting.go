package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

func registerVoting(r *Registry) {
	r.Register(Tool{
		Name:        "masc_vote_create",
		Category:    CategoryVoting,
		Description: "Open a new vote over a fixed option set.",
		Schema:      schema(`{"type":"object","properties":{"topic":{"type":"string"},"options":{"type":"array","items":{"type":"string"}},"created_by":{"type":"string"}},"required":["topic","options","created_by"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			topic, err := stringArg(args, "topic")
			if err != nil {
				return nil, err
			}
			createdBy, err := stringArg(args, "created_by")
			if err != nil {
				return nil, err
			}
			options := stringSliceArg(args, "options")
			return s.VoteCreate(ctx, topic, options, createdBy)
		},
	})

	r.Register(Tool{
		Name:        "masc_vote_cast",
		Category:    CategoryVoting,
		Description: "Cast (or change) a ballot in an open vote.",
		Schema:      schema(`{"type":"object","properties":{"vote_id":{"type":"string"},"agent_id":{"type":"string"},"option":{"type":"string"}},"required":["vote_id","agent_id","option"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			voteID, err := stringArg(args, "vote_id")
			if err != nil {
				return nil, err
			}
			agentID, err := stringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			option, err := stringArg(args, "option")
			if err != nil {
				return nil, err
			}
			return s.VoteCast(ctx, voteID, agentID, option)
		},
	})

	r.Register(Tool{
		Name:        "masc_vote_status",
		Category:    CategoryVoting,
		Description: "Read a vote's current tally and status.",
		Schema:      schema(`{"type":"object","properties":{"vote_id":{"type":"string"}},"required":["vote_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			voteID, err := stringArg(args, "vote_id")
			if err != nil {
				return nil, err
			}
			return s.VoteStatus(ctx, voteID)
		},
	})

	r.Register(Tool{
		Name:        "masc_vote_close",
		Category:    CategoryVoting,
		Description: "Close a vote and compute its majority winner(s).",
		Schema:      schema(`{"type":"object","properties":{"vote_id":{"type":"string"}},"required":["vote_id"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			voteID, err := stringArg(args, "vote_id")
			if err != nil {
				return nil, err
			}
			vote, winners, err := s.VoteClose(ctx, voteID)
			if err != nil {
				return nil, err
			}
			return struct {
				Vote    *room.Vote `json:"vote"`
				Winners []string   `json:"winners"`
			}{vote, winners}, nil
		},
	})
}
