package room

import "context"

// VoteCreate opens a new vote.
func (s *Store) VoteCreate(ctx context.Context, topic string, options []string, createdBy string) (*Vote, error) {
	if topic == "" || len(options) == 0 {
		return nil, New(KindInvalidArgument, "topic and at least one option are required")
	}
	v := &Vote{
		ID:        s.ids.ID(),
		Topic:     topic,
		Options:   options,
		CreatedBy: createdBy,
		OpenedAt:  s.now(),
		Status:    VoteOpen,
		Ballots:   map[string]string{},
	}
	if err := s.putVote(ctx, v); err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("vote_created", seq, v)
	}
	return v, nil
}

// VoteCast records one ballot per agent, overwriting any prior ballot.
func (s *Store) VoteCast(ctx context.Context, voteID, agentID, option string) (*Vote, error) {
	var result *Vote
	err := s.withLock(ctx, "vote:"+voteID, func() error {
		v, err := s.getVote(ctx, voteID)
		if err != nil {
			return err
		}
		if v.Status != VoteOpen {
			return New(KindConflict, "vote is closed")
		}
		valid := false
		for _, o := range v.Options {
			if o == option {
				valid = true
				break
			}
		}
		if !valid {
			return New(KindInvalidArgument, "unknown option")
		}
		v.Ballots[agentID] = option
		if err := s.putVote(ctx, v); err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("vote_cast", seq, result)
	}
	return result, nil
}

// VoteStatus returns the vote with its current tally.
func (s *Store) VoteStatus(ctx context.Context, voteID string) (*Vote, error) {
	return s.getVote(ctx, voteID)
}

// VoteClose sets status=closed and freezes ballots. Returns the
// winning option(s) by majority.
func (s *Store) VoteClose(ctx context.Context, voteID string) (*Vote, []string, error) {
	var result *Vote
	err := s.withLock(ctx, "vote:"+voteID, func() error {
		v, err := s.getVote(ctx, voteID)
		if err != nil {
			return err
		}
		if v.Status == VoteClosed {
			result = v
			return nil
		}
		v.Status = VoteClosed
		if err := s.putVote(ctx, v); err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("vote_closed", seq, result)
	}
	return result, tallyWinners(result), nil
}

func tallyWinners(v *Vote) []string {
	counts := make(map[string]int)
	for _, opt := range v.Ballots {
		counts[opt]++
	}
	best := -1
	var winners []string
	for _, opt := range v.Options {
		c := counts[opt]
		switch {
		case c > best:
			best = c
			winners = []string{opt}
		case c == best && best >= 0:
			winners = append(winners, opt)
		}
	}
	return winners
}

func (s *Store) getVote(ctx context.Context, id string) (*Vote, error) {
	raw, err := s.backend.Get(ctx, s.voteKey(id))
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	var v Vote
	if err := unmarshal(raw, &v); err != nil {
		return nil, New(KindInternal, "corrupt vote record: "+err.Error())
	}
	return &v, nil
}

func (s *Store) putVote(ctx context.Context, v *Vote) error {
	data, err := marshal(v)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	if err := s.backend.Set(ctx, s.voteKey(v.ID), data); err != nil {
		return s.translateBackendErr(err)
	}
	return nil
}
