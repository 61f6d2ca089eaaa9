package room

import (
	"context"
	"strings"
)

// Join creates or revives an agent. If an agent with this id exists
// and is left, it is resurrected; if active, the existing record is
// returned unchanged (idempotent). Emits agent_joined.
func (s *Store) Join(ctx context.Context, agentID string, capabilities []string, displayName string) (*Agent, error) {
	if agentID == "" {
		return nil, New(KindInvalidArgument, "agent_id is required")
	}

	var result *Agent
	err := s.withLock(ctx, "agent:"+agentID, func() error {
		existing, err := s.getAgent(ctx, agentID)
		if err != nil && KindOf(err) != KindNotFound {
			return err
		}

		now := s.now()
		if existing != nil && existing.Status != AgentLeft {
			result = existing
			return nil
		}

		a := &Agent{
			ID:            agentID,
			DisplayName:   displayName,
			Capabilities:  capabilities,
			Status:        AgentActive,
			JoinedAt:      now,
			LastHeartbeat: now,
		}
		if existing != nil {
			a.JoinedAt = existing.JoinedAt
		}
		return s.putAgent(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}

	a, err := s.getAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("agent_joined", seq, a)
	}
	return a, nil
}

// Leave flips status=left, releases the agent's locks and any claimed
// tasks (returned to pending unless status=done). Emits agent_left.
func (s *Store) Leave(ctx context.Context, agentID string) error {
	var a *Agent
	err := s.withLock(ctx, "agent:"+agentID, func() error {
		existing, err := s.getAgent(ctx, agentID)
		if err != nil {
			return err
		}
		existing.Status = AgentLeft
		if err := s.putAgent(ctx, existing); err != nil {
			return err
		}
		a = existing
		return nil
	})
	if err != nil {
		return err
	}

	s.releaseAgentResources(ctx, agentID)

	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("agent_left", seq, a)
	}
	return nil
}

// releaseAgentResources returns the agent's claimed task to pending
// (unless done) and releases every lock it holds. Used by Leave and
// by the supervisor's zombie sweep.
func (s *Store) releaseAgentResources(ctx context.Context, agentID string) {
	keys, err := s.backend.List(ctx, s.prefix()+"/tasks/")
	if err == nil {
		for _, k := range keys {
			id := strings.TrimPrefix(k, s.prefix()+"/tasks/")
			t, terr := s.getTask(ctx, id)
			if terr != nil || t == nil {
				continue
			}
			if t.ClaimedBy == agentID && (t.Status == TaskClaimed || t.Status == TaskInProgress) {
				_ = s.withLock(ctx, "task:"+id, func() error {
					cur, cerr := s.getTask(ctx, id)
					if cerr != nil {
						return cerr
					}
					if cur.ClaimedBy != agentID {
						return nil
					}
					cur.Status = TaskPending
					cur.ClaimedBy = ""
					cur.ClaimedAt = nil
					return s.putTask(ctx, cur)
				})
			}
		}
	}
	s.setAgentCurrentTask(ctx, agentID, "")

	lockKeys, err := s.backend.List(ctx, s.prefix()+"/locks/")
	if err == nil {
		for _, k := range lockKeys {
			raw, gerr := s.backend.Get(ctx, k)
			if gerr != nil {
				continue
			}
			var l Lock
			if unmarshal(raw, &l) != nil {
				continue
			}
			if l.Holder == agentID {
				_ = s.backend.Delete(ctx, k)
			}
		}
	}
}

// Heartbeat updates last_heartbeat. No-op if the agent is not present.
// If the agent was a zombie and heartbeats again before GC, it revives
// to active.
func (s *Store) Heartbeat(ctx context.Context, agentID string) error {
	return s.withLock(ctx, "agent:"+agentID, func() error {
		a, err := s.getAgent(ctx, agentID)
		if err != nil {
			if KindOf(err) == KindNotFound {
				return nil
			}
			return err
		}
		a.LastHeartbeat = s.now()
		if a.Status == AgentZombie {
			a.Status = AgentActive
		}
		return s.putAgent(ctx, a)
	})
}

// SweepZombies transitions agents whose heartbeat has gone stale past
// heartbeatTTL to zombie, and garbage-collects zombies that have
// stayed stale for a further zombieTTL to left, releasing their
// claimed tasks and locks via the same path Leave uses. Called
// periodically by the supervisor; Heartbeat already handles the
// zombie→active revival half of this state machine.
func (s *Store) SweepZombies(ctx context.Context) (int, error) {
	if s.heartbeatTTL <= 0 {
		return 0, nil
	}
	agents, err := s.Agents(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	swept := 0
	for _, a := range agents {
		switch a.Status {
		case AgentLeft:
			continue
		case AgentZombie:
			if s.zombieTTL <= 0 || now.Sub(a.LastHeartbeat) < s.heartbeatTTL+s.zombieTTL {
				continue
			}
			if err := s.gcZombie(ctx, a.ID); err == nil {
				swept++
			}
		default:
			if now.Sub(a.LastHeartbeat) < s.heartbeatTTL {
				continue
			}
			if err := s.markZombie(ctx, a.ID); err == nil {
				swept++
			}
		}
	}
	return swept, nil
}

// setAgentCurrentTask best-effort records which task an agent is
// working on, so the zombie sweep knows what to hand off. Absent or
// already-left agents are not an error — a caller racing Leave should
// not fail the task transition it is otherwise completing.
func (s *Store) setAgentCurrentTask(ctx context.Context, agentID, taskID string) {
	_ = s.withLock(ctx, "agent:"+agentID, func() error {
		a, err := s.getAgent(ctx, agentID)
		if err != nil {
			return nil
		}
		a.CurrentTaskID = taskID
		return s.putAgent(ctx, a)
	})
}

func (s *Store) markZombie(ctx context.Context, agentID string) error {
	var a *Agent
	err := s.withLock(ctx, "agent:"+agentID, func() error {
		existing, err := s.getAgent(ctx, agentID)
		if err != nil {
			return err
		}
		if existing.Status == AgentLeft || existing.Status == AgentZombie {
			a = existing
			return nil
		}
		existing.Status = AgentZombie
		if err := s.putAgent(ctx, existing); err != nil {
			return err
		}
		a = existing
		return nil
	})
	if err != nil {
		return err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("agent_zombie", seq, a)
	}
	return nil
}

func (s *Store) gcZombie(ctx context.Context, agentID string) error {
	var a *Agent
	err := s.withLock(ctx, "agent:"+agentID, func() error {
		existing, err := s.getAgent(ctx, agentID)
		if err != nil {
			return err
		}
		if existing.Status != AgentZombie {
			a = existing
			return nil
		}
		existing.Status = AgentLeft
		if err := s.putAgent(ctx, existing); err != nil {
			return err
		}
		a = existing
		return nil
	})
	if err != nil {
		return err
	}
	if a != nil && a.CurrentTaskID != "" {
		_, _ = s.HandoffCreate(ctx, &Handoff{
			FromAgent:       agentID,
			TaskID:          a.CurrentTaskID,
			Reason:          HandoffTimeout,
			ProgressSummary: "agent went unresponsive (zombie GC): work reassigned",
		})
	}
	s.releaseAgentResources(ctx, agentID)
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("agent_left", seq, a)
	}
	return nil
}

// Agents returns a snapshot of every agent in the room.
func (s *Store) Agents(ctx context.Context) ([]*Agent, error) {
	keys, err := s.backend.List(ctx, s.prefix()+"/agents/")
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	out := make([]*Agent, 0, len(keys))
	for _, k := range keys {
		raw, gerr := s.backend.Get(ctx, k)
		if gerr != nil {
			continue
		}
		var a Agent
		if unmarshal(raw, &a) != nil {
			continue
		}
		out = append(out, &a)
	}
	return out, nil
}

// Agent returns one agent by id, or a not_found error.
func (s *Store) Agent(ctx context.Context, agentID string) (*Agent, error) {
	return s.getAgent(ctx, agentID)
}

// SetWorktree records which git worktree an agent is currently
// operating in. The worktree's actual contents are opaque to MASC
// (spec.md §1 "git/worktree shell operations, called but not
// re-specified") — this just bookkeeps the association for discovery
// tools and dashboards.
func (s *Store) SetWorktree(ctx context.Context, agentID, worktree string) (*Agent, error) {
	var result *Agent
	err := s.withLock(ctx, "agent:"+agentID, func() error {
		a, err := s.getAgent(ctx, agentID)
		if err != nil {
			return err
		}
		a.CurrentWorktree = worktree
		if err := s.putAgent(ctx, a); err != nil {
			return err
		}
		result = a
		return nil
	})
	return result, err
}

func (s *Store) getAgent(ctx context.Context, agentID string) (*Agent, error) {
	raw, err := s.backend.Get(ctx, s.agentKey(agentID))
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	var a Agent
	if err := unmarshal(raw, &a); err != nil {
		return nil, New(KindInternal, "corrupt agent record: "+err.Error())
	}
	return &a, nil
}

func (s *Store) putAgent(ctx context.Context, a *Agent) error {
	data, err := marshal(a)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	if err := s.backend.Set(ctx, s.agentKey(a.ID), data); err != nil {
		return s.translateBackendErr(err)
	}
	return nil
}
