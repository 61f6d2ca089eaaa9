package room

import "context"

const portalInboxCapacity = 100

// PortalOpen creates a channel between two agents; idempotent on an
// existing open portal for the same pair.
func (s *Store) PortalOpen(ctx context.Context, a, b string) (*Portal, error) {
	if existing, err := s.findOpenPortal(ctx, a, b); err == nil && existing != nil {
		return existing, nil
	}

	p := &Portal{
		ID:       s.ids.ID(),
		AgentA:   a,
		AgentB:   b,
		OpenedAt: s.now(),
		Status:   PortalOpen,
	}
	if err := s.putPortal(ctx, p); err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("portal_opened", seq, p)
	}
	return p, nil
}

func (s *Store) findOpenPortal(ctx context.Context, a, b string) (*Portal, error) {
	keys, err := s.backend.List(ctx, s.prefix()+"/portals/")
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	for _, k := range keys {
		raw, gerr := s.backend.Get(ctx, k)
		if gerr != nil {
			continue
		}
		var p Portal
		if unmarshal(raw, &p) != nil {
			continue
		}
		if p.Status != PortalOpen {
			continue
		}
		if (p.AgentA == a && p.AgentB == b) || (p.AgentA == b && p.AgentB == a) {
			return &p, nil
		}
	}
	return nil, nil
}

// PortalSend enqueues payload to the receiver's inbox; oldest dropped
// on overflow with an overflow notification.
func (s *Store) PortalSend(ctx context.Context, portalID, from, payload string) error {
	var overflowed bool
	err := s.withLock(ctx, "portal:"+portalID, func() error {
		p, err := s.getPortal(ctx, portalID)
		if err != nil {
			return err
		}
		if p.Status != PortalOpen {
			return New(KindConflict, "portal is closed")
		}

		msg := PortalMsg{From: from, Payload: payload, Timestamp: s.now()}
		var target *[]PortalMsg
		switch from {
		case p.AgentA:
			target = &p.InboxB
		case p.AgentB:
			target = &p.InboxA
		default:
			return New(KindForbidden, "sender is not a participant in this portal")
		}

		*target = append(*target, msg)
		if len(*target) > portalInboxCapacity {
			*target = (*target)[len(*target)-portalInboxCapacity:]
			overflowed = true
		}
		return s.putPortal(ctx, p)
	})
	if err != nil {
		return err
	}

	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		kind := "portal_message"
		if overflowed {
			kind = "overflow"
		}
		s.publish(kind, seq, map[string]string{"portal_id": portalID, "from": from})
	}
	return nil
}

// PortalClose closes a portal.
func (s *Store) PortalClose(ctx context.Context, portalID string) error {
	return s.withLock(ctx, "portal:"+portalID, func() error {
		p, err := s.getPortal(ctx, portalID)
		if err != nil {
			return err
		}
		p.Status = PortalClosed
		return s.putPortal(ctx, p)
	})
}

func (s *Store) getPortal(ctx context.Context, id string) (*Portal, error) {
	raw, err := s.backend.Get(ctx, s.portalKey(id))
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	var p Portal
	if err := unmarshal(raw, &p); err != nil {
		return nil, New(KindInternal, "corrupt portal record: "+err.Error())
	}
	return &p, nil
}

func (s *Store) putPortal(ctx context.Context, p *Portal) error {
	data, err := marshal(p)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	if err := s.backend.Set(ctx, s.portalKey(p.ID), data); err != nil {
		return s.translateBackendErr(err)
	}
	return nil
}
