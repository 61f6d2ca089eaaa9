package room

import (
	"context"
	"fmt"
)

// HandoffCreate validates from_agent exists, persists a capsule, and
// emits handoff_created.
func (s *Store) HandoffCreate(ctx context.Context, h *Handoff) (*Handoff, error) {
	if h.FromAgent == "" {
		return nil, New(KindInvalidArgument, "from_agent is required")
	}
	if _, err := s.getAgent(ctx, h.FromAgent); err != nil {
		return nil, err
	}

	h.ID = s.ids.ID()
	h.CreatedAt = s.now()
	h.Status = HandoffPending

	if err := s.encryptCapsule(h); err != nil {
		return nil, err
	}
	if err := s.putHandoff(ctx, h); err != nil {
		return nil, err
	}

	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("handoff_created", seq, h)
	}
	return h, nil
}

// HandoffClaim CAS pending→claimed; fails conflict if another claim
// won, not_found if expired. Sets to_agent.
func (s *Store) HandoffClaim(ctx context.Context, id, agentID string) (*Handoff, error) {
	var result *Handoff
	err := s.withLock(ctx, "handoff:"+id, func() error {
		h, err := s.getHandoff(ctx, id)
		if err != nil {
			return err
		}
		if h.Status == HandoffExpired {
			return New(KindNotFound, "handoff has expired")
		}
		if h.Status != HandoffPending {
			return New(KindConflict, "handoff is not pending")
		}
		now := s.now()
		h.Status = HandoffClaimed
		h.ToAgent = agentID
		h.ClaimedAt = &now
		if err := s.putHandoff(ctx, h); err != nil {
			return err
		}
		result = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("handoff_claimed", seq, result)
	}
	return result, nil
}

// HandoffConsume marks a claimed capsule consumed, once the successor
// has taken over the work it describes. Only claimed→consumed is
// legal.
func (s *Store) HandoffConsume(ctx context.Context, id, agentID string) (*Handoff, error) {
	var result *Handoff
	err := s.withLock(ctx, "handoff:"+id, func() error {
		h, err := s.getHandoff(ctx, id)
		if err != nil {
			return err
		}
		if h.Status != HandoffClaimed || h.ToAgent != agentID {
			return New(KindConflict, "handoff is not claimed by this agent")
		}
		h.Status = HandoffConsumed
		if err := s.putHandoff(ctx, h); err != nil {
			return err
		}
		result = h
		return nil
	})
	return result, err
}

// HandoffExpire marks a pending capsule expired (called by the
// supervisor once handoff_ttl elapses) or, for a claimed-but-unconsumed
// capsule past handoff_consume_ttl, returns it to pending with
// to_agent cleared.
func (s *Store) HandoffExpire(ctx context.Context, id string) error {
	return s.withLock(ctx, "handoff:"+id, func() error {
		h, err := s.getHandoff(ctx, id)
		if err != nil {
			return err
		}
		switch h.Status {
		case HandoffPending:
			h.Status = HandoffExpired
		case HandoffClaimed:
			h.Status = HandoffPending
			h.ToAgent = ""
			h.ClaimedAt = nil
		default:
			return nil
		}
		return s.putHandoff(ctx, h)
	})
}

// HandoffGet returns the capsule as structured fields plus a
// markdown-rendered prompt.
func (s *Store) HandoffGet(ctx context.Context, id string) (*Handoff, string, error) {
	h, err := s.getHandoff(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if err := s.decryptCapsule(h); err != nil {
		return nil, "", err
	}
	return h, renderHandoffMarkdown(h), nil
}

// SweepHandoffs expires every pending capsule past handoffTTL and
// returns every claimed-but-unconsumed capsule past handoffConsumeTTL
// to pending, via the existing single-ID HandoffExpire transition.
// Called periodically by the supervisor.
func (s *Store) SweepHandoffs(ctx context.Context) (int, error) {
	now := s.now()
	swept := 0

	if s.handoffTTL > 0 {
		pending, err := s.Handoffs(ctx, HandoffPending)
		if err != nil {
			return swept, err
		}
		for _, h := range pending {
			if now.Sub(h.CreatedAt) < s.handoffTTL {
				continue
			}
			if err := s.HandoffExpire(ctx, h.ID); err == nil {
				swept++
			}
		}
	}

	if s.handoffConsumeTTL > 0 {
		claimed, err := s.Handoffs(ctx, HandoffClaimed)
		if err != nil {
			return swept, err
		}
		for _, h := range claimed {
			if h.ClaimedAt == nil || now.Sub(*h.ClaimedAt) < s.handoffConsumeTTL {
				continue
			}
			if err := s.HandoffExpire(ctx, h.ID); err == nil {
				swept++
			}
		}
	}

	return swept, nil
}

// Handoffs returns a snapshot of every handoff capsule in the room,
// optionally filtered by status.
func (s *Store) Handoffs(ctx context.Context, status HandoffStatus) ([]*Handoff, error) {
	keys, err := s.backend.List(ctx, s.prefix()+"/handovers/")
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	out := make([]*Handoff, 0, len(keys))
	for _, k := range keys {
		raw, gerr := s.backend.Get(ctx, k)
		if gerr != nil {
			continue
		}
		var h Handoff
		if unmarshal(raw, &h) != nil {
			continue
		}
		if status != "" && h.Status != status {
			continue
		}
		out = append(out, &h)
	}
	return out, nil
}

func renderHandoffMarkdown(h *Handoff) string {
	return fmt.Sprintf("# Handoff %s\n\n**Goal:** %s\n\n**Progress:** %s\n\n**Completed steps:**\n%s\n\n**Pending steps:**\n%s\n",
		h.ID, h.Goal, h.ProgressSummary, renderList(h.CompletedSteps), renderList(h.PendingSteps))
}

func renderList(items []string) string {
	out := ""
	for _, it := range items {
		out += "- " + it + "\n"
	}
	return out
}

// encryptCapsule seals the capsule's ProgressSummary through the
// Store's crypt.Box before it is persisted, per spec.md §9's "encrypt
// handover.capsule at write time". The capsule's other fields are
// stored as given.
func (s *Store) encryptCapsule(h *Handoff) error {
	sealed, err := s.box.Seal(h.ProgressSummary)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	h.ProgressSummary = sealed
	return nil
}

func (s *Store) decryptCapsule(h *Handoff) error {
	opened, err := s.box.Open(h.ProgressSummary)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	h.ProgressSummary = opened
	return nil
}

func (s *Store) getHandoff(ctx context.Context, id string) (*Handoff, error) {
	raw, err := s.backend.Get(ctx, s.handoffKey(id))
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	var h Handoff
	if err := unmarshal(raw, &h); err != nil {
		return nil, New(KindInternal, "corrupt handoff record: "+err.Error())
	}
	return &h, nil
}

func (s *Store) putHandoff(ctx context.Context, h *Handoff) error {
	data, err := marshal(h)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	if err := s.backend.Set(ctx, s.handoffKey(h.ID), data); err != nil {
		return s.translateBackendErr(err)
	}
	return nil
}
