package room

import "context"

func (s *Store) roomMetaKey() string { return s.prefix() + "/room" }

// RoomInfo returns the current Room record, initializing one with the
// default mode (every category enabled) and tempo on first read.
func (s *Store) RoomInfo(ctx context.Context) (*Room, error) {
	r, err := s.getRoom(ctx)
	if err != nil {
		if KindOf(err) != KindNotFound {
			return nil, err
		}
		r = &Room{
			Cluster:   s.cluster,
			RoomID:    s.roomID,
			CreatedAt: s.now(),
			Mode:      nil, // nil = all categories enabled
			Tempo:     30,
		}
		if err := s.putRoom(ctx, r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetMode replaces the room's enabled tool categories. An empty slice
// means "all categories enabled", matching RoomInfo's default.
func (s *Store) SetMode(ctx context.Context, categories []string) (*Room, error) {
	r, err := s.RoomInfo(ctx)
	if err != nil {
		return nil, err
	}
	r.Mode = categories
	if err := s.putRoom(ctx, r); err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("mode_changed", seq, r)
	}
	return r, nil
}

// Pause marks the room paused with an optional reason; dispatch may
// consult this to refuse mutating tool calls while paused.
func (s *Store) Pause(ctx context.Context, reason string) (*Room, error) {
	r, err := s.RoomInfo(ctx)
	if err != nil {
		return nil, err
	}
	r.Paused = true
	r.PauseReason = reason
	if err := s.putRoom(ctx, r); err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("room_paused", seq, r)
	}
	return r, nil
}

// Resume clears a prior Pause.
func (s *Store) Resume(ctx context.Context) (*Room, error) {
	r, err := s.RoomInfo(ctx)
	if err != nil {
		return nil, err
	}
	r.Paused = false
	r.PauseReason = ""
	if err := s.putRoom(ctx, r); err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("room_resumed", seq, r)
	}
	return r, nil
}

// SetTempo stores the background-loop interval, in seconds. The
// Lifecycle Supervisor derives this from load (spec.md §4.5), and its
// next tempo recalculation replaces a stored value that differs from
// the load-derived one.
func (s *Store) SetTempo(ctx context.Context, seconds float64) (*Room, error) {
	r, err := s.RoomInfo(ctx)
	if err != nil {
		return nil, err
	}
	r.Tempo = seconds
	if err := s.putRoom(ctx, r); err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("tempo_changed", seq, r)
	}
	return r, nil
}

// CategoryEnabled reports whether category is visible under the
// room's current mode. An empty Mode means every category is enabled.
func (s *Store) CategoryEnabled(ctx context.Context, category string) (bool, error) {
	r, err := s.RoomInfo(ctx)
	if err != nil {
		return false, err
	}
	if len(r.Mode) == 0 {
		return true, nil
	}
	for _, c := range r.Mode {
		if c == category {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) getRoom(ctx context.Context) (*Room, error) {
	raw, err := s.backend.Get(ctx, s.roomMetaKey())
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	var r Room
	if err := unmarshal(raw, &r); err != nil {
		return nil, New(KindInternal, err.Error())
	}
	return &r, nil
}

func (s *Store) putRoom(ctx context.Context, r *Room) error {
	raw, err := marshal(r)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	return s.translateBackendErr(s.backend.Set(ctx, s.roomMetaKey(), raw))
}
