package room

import "context"

// CheckpointSave always creates a new checkpoint in Pending state. It
// does not advance an existing checkpoint, and no Store method moves a
// checkpoint to In_progress.
func (s *Store) CheckpointSave(ctx context.Context, taskID, stateJSON string, step int) (*Checkpoint, error) {
	c := &Checkpoint{
		ID:        s.ids.ID(),
		TaskID:    taskID,
		Step:      step,
		StateJSON: stateJSON,
		Status:    CheckpointPending,
		CreatedAt: s.now(),
	}
	sealed := *c
	if err := s.encryptCheckpointState(&sealed); err != nil {
		return nil, err
	}
	if err := s.putCheckpoint(ctx, &sealed); err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("checkpoint_saved", seq, c)
	}
	return c, nil
}

// CheckpointGet returns a checkpoint with state_json decrypted.
func (s *Store) CheckpointGet(ctx context.Context, taskID, id string) (*Checkpoint, error) {
	c, err := s.getCheckpoint(ctx, taskID, id)
	if err != nil {
		return nil, err
	}
	if err := s.decryptCheckpointState(c); err != nil {
		return nil, err
	}
	return c, nil
}

// CheckpointInterrupt transitions Pending|In_progress → Interrupted.
func (s *Store) CheckpointInterrupt(ctx context.Context, taskID, id, message string) (*Checkpoint, error) {
	return s.transitionCheckpoint(ctx, taskID, id, func(c *Checkpoint) error {
		if c.Status != CheckpointPending && c.Status != CheckpointInProgress {
			return New(KindConflict, "checkpoint cannot be interrupted from "+string(c.Status))
		}
		now := s.now()
		c.Status = CheckpointInterrupted
		c.InterruptMessage = message
		c.InterruptedAt = &now
		return nil
	}, "checkpoint_interrupted")
}

// CheckpointApprove requires Interrupted → Completed.
func (s *Store) CheckpointApprove(ctx context.Context, taskID, id string) (*Checkpoint, error) {
	return s.transitionCheckpoint(ctx, taskID, id, func(c *Checkpoint) error {
		if c.Status != CheckpointInterrupted {
			return New(KindConflict, "approve requires Interrupted state")
		}
		now := s.now()
		c.Status = CheckpointCompleted
		c.ResolvedAt = &now
		return nil
	}, "checkpoint_approved")
}

// CheckpointReject requires Interrupted → Rejected (including via
// supervisor timeout, reason="timeout").
func (s *Store) CheckpointReject(ctx context.Context, taskID, id, reason string) (*Checkpoint, error) {
	return s.transitionCheckpoint(ctx, taskID, id, func(c *Checkpoint) error {
		if c.Status != CheckpointInterrupted {
			return New(KindConflict, "reject requires Interrupted state")
		}
		now := s.now()
		c.Status = CheckpointRejected
		c.RejectReason = reason
		c.ResolvedAt = &now
		return nil
	}, "checkpoint_rejected")
}

// CheckpointBranch forks a new checkpoint from Interrupted, with
// parent_checkpoint_id and step+1, cloning state.
func (s *Store) CheckpointBranch(ctx context.Context, taskID, id, branchName string) (*Checkpoint, error) {
	var branch *Checkpoint
	_, err := s.transitionCheckpoint(ctx, taskID, id, func(c *Checkpoint) error {
		if c.Status != CheckpointInterrupted {
			return New(KindConflict, "branch requires Interrupted state")
		}
		c.Status = CheckpointBranched
		now := s.now()
		c.ResolvedAt = &now

		branch = &Checkpoint{
			ID:                 s.ids.ID(),
			TaskID:              c.TaskID,
			Step:                c.Step + 1,
			StateJSON:           c.StateJSON,
			Status:              CheckpointPending,
			ParentCheckpointID:  c.ID,
			BranchName:          branchName,
			CreatedAt:           s.now(),
		}
		return nil
	}, "checkpoint_branched")
	if err != nil {
		return nil, err
	}
	if err := s.putCheckpoint(ctx, branch); err != nil {
		return nil, err
	}
	return branch, nil
}

// CheckpointRevert transitions any non-terminal checkpoint to
// Reverted (time travel).
func (s *Store) CheckpointRevert(ctx context.Context, taskID, id string) (*Checkpoint, error) {
	return s.transitionCheckpoint(ctx, taskID, id, func(c *Checkpoint) error {
		if c.Status == CheckpointCompleted || c.Status == CheckpointRejected || c.Status == CheckpointReverted {
			return New(KindConflict, "checkpoint is already terminal")
		}
		now := s.now()
		c.Status = CheckpointReverted
		c.ResolvedAt = &now
		return nil
	}, "checkpoint_reverted")
}

func (s *Store) transitionCheckpoint(ctx context.Context, taskID, id string, mutate func(*Checkpoint) error, notifyKind string) (*Checkpoint, error) {
	var result *Checkpoint
	err := s.withLock(ctx, "checkpoint:"+id, func() error {
		c, err := s.getCheckpoint(ctx, taskID, id)
		if err != nil {
			return err
		}
		if err := mutate(c); err != nil {
			return err
		}
		if err := s.putCheckpoint(ctx, c); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish(notifyKind, seq, result)
	}
	return result, nil
}

// SweepInterrupts auto-rejects every Interrupted checkpoint that has
// sat past interruptTTL without a human approve/reject/branch, per
// CheckpointReject's "including via supervisor timeout" contract.
// Checkpoints are only listable per-task, so this walks every task's
// checkpoint set; called periodically by the supervisor, not on the
// request path, so the O(tasks) scan is acceptable.
func (s *Store) SweepInterrupts(ctx context.Context) (int, error) {
	if s.interruptTTL <= 0 {
		return 0, nil
	}
	tasks, err := s.Tasks(ctx, "")
	if err != nil {
		return 0, err
	}
	now := s.now()
	swept := 0
	for _, t := range tasks {
		cps, err := s.Checkpoints(ctx, t.ID)
		if err != nil {
			continue
		}
		for _, c := range cps {
			if c.Status != CheckpointInterrupted || c.InterruptedAt == nil {
				continue
			}
			if now.Sub(*c.InterruptedAt) < s.interruptTTL {
				continue
			}
			if _, rerr := s.CheckpointReject(ctx, t.ID, c.ID, "timeout"); rerr == nil {
				swept++
			}
		}
	}
	return swept, nil
}

// Checkpoints returns every checkpoint recorded for taskID.
func (s *Store) Checkpoints(ctx context.Context, taskID string) ([]*Checkpoint, error) {
	keys, err := s.backend.List(ctx, s.prefix()+"/checkpoints/"+taskID+"/")
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	out := make([]*Checkpoint, 0, len(keys))
	for _, k := range keys {
		raw, gerr := s.backend.Get(ctx, k)
		if gerr != nil {
			continue
		}
		var c Checkpoint
		if unmarshal(raw, &c) != nil {
			continue
		}
		if s.decryptCheckpointState(&c) != nil {
			continue
		}
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) encryptCheckpointState(c *Checkpoint) error {
	sealed, err := s.box.Seal(c.StateJSON)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	c.StateJSON = sealed
	return nil
}

func (s *Store) decryptCheckpointState(c *Checkpoint) error {
	opened, err := s.box.Open(c.StateJSON)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	c.StateJSON = opened
	return nil
}

func (s *Store) getCheckpoint(ctx context.Context, taskID, id string) (*Checkpoint, error) {
	raw, err := s.backend.Get(ctx, s.checkpointKey(taskID, id))
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	var c Checkpoint
	if err := unmarshal(raw, &c); err != nil {
		return nil, New(KindInternal, "corrupt checkpoint record: "+err.Error())
	}
	return &c, nil
}

func (s *Store) putCheckpoint(ctx context.Context, c *Checkpoint) error {
	data, err := marshal(c)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	if err := s.backend.Set(ctx, s.checkpointKey(c.TaskID, c.ID), data); err != nil {
		return s.translateBackendErr(err)
	}
	return nil
}
