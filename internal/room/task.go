package room

import (
	"context"
	"sort"
	"strings"
)

// AddTask generates an id if absent, validates uniqueness, and stores
// the task with status=pending.
func (s *Store) AddTask(ctx context.Context, id, title string, priority int, payload, source string, requiredCaps []string) (*Task, error) {
	if title == "" {
		return nil, New(KindInvalidArgument, "title is required")
	}
	if priority < 1 || priority > 5 {
		return nil, New(KindInvalidArgument, "priority must be between 1 and 5")
	}
	if id == "" {
		id = s.ids.ID()
	}

	var result *Task
	err := s.withLock(ctx, "task:"+id, func() error {
		_, err := s.getTask(ctx, id)
		if err == nil {
			return New(KindConflict, "task id already exists")
		}
		if KindOf(err) != KindNotFound {
			return err
		}
		t := &Task{
			ID:                   id,
			Title:                title,
			Priority:             priority,
			Status:               TaskPending,
			Payload:              payload,
			Source:               source,
			RequiredCapabilities: requiredCaps,
			CreatedAt:            s.now(),
		}
		result = t
		return s.putTask(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("task_added", seq, result)
	}
	return result, nil
}

// Claim performs task_id CAS status pending→claimed with
// claimed_by=agent_id. Fails conflict if claimed by another agent;
// idempotent if claimed by the same agent.
func (s *Store) Claim(ctx context.Context, taskID, agentID string) (*Task, error) {
	var result *Task
	err := s.withLock(ctx, "task:"+taskID, func() error {
		t, err := s.getTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t.Status == TaskClaimed || t.Status == TaskInProgress {
			if t.ClaimedBy == agentID {
				result = t
				return nil
			}
			return New(KindConflict, "task already claimed by "+t.ClaimedBy)
		}
		if t.Status != TaskPending {
			return New(KindConflict, "task is not pending")
		}
		now := s.now()
		t.Status = TaskClaimed
		t.ClaimedBy = agentID
		t.ClaimedAt = &now
		if err := s.putTask(ctx, t); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.setAgentCurrentTask(ctx, agentID, taskID)

	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("task_claimed", seq, result)
	}
	return result, nil
}

// ClaimNext picks the highest-priority pending task (tie-break:
// oldest created_at), optionally restricted to tasks whose
// required_capabilities is a subset of capsFilter. Bounded CAS-retry
// loop.
func (s *Store) ClaimNext(ctx context.Context, agentID string, capsFilter []string) (*Task, error) {
	const maxAttempts = 5

	capSet := make(map[string]struct{}, len(capsFilter))
	for _, c := range capsFilter {
		capSet[c] = struct{}{}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := s.pickPendingTask(ctx, capSet, capsFilter != nil)
		if err != nil {
			return nil, err
		}
		if candidate == nil {
			return nil, New(KindNotFound, "no pending task available")
		}
		t, err := s.Claim(ctx, candidate.ID, agentID)
		if err == nil {
			return t, nil
		}
		if KindOf(err) == KindConflict {
			continue // another agent won the race; retry with next candidate
		}
		return nil, err
	}
	return nil, New(KindConflict, "could not claim a task after retries")
}

func (s *Store) pickPendingTask(ctx context.Context, capSet map[string]struct{}, filterCaps bool) (*Task, error) {
	keys, err := s.backend.List(ctx, s.prefix()+"/tasks/")
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	var candidates []*Task
	for _, k := range keys {
		id := strings.TrimPrefix(k, s.prefix()+"/tasks/")
		t, terr := s.getTask(ctx, id)
		if terr != nil || t.Status != TaskPending {
			continue
		}
		if filterCaps && !subsetOf(t.RequiredCapabilities, capSet) {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0], nil
}

func subsetOf(required []string, have map[string]struct{}) bool {
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// Done requires the task be claimed by agentID; transitions to done
// and sets completed_at. It releases no locks: locks are not tied to a
// task, and the agent's locks stay held until ReleaseLock, Leave or
// the zombie sweep.
func (s *Store) Done(ctx context.Context, taskID, agentID string) (*Task, error) {
	var result *Task
	err := s.withLock(ctx, "task:"+taskID, func() error {
		t, err := s.getTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t.ClaimedBy != agentID {
			return New(KindForbidden, "task is not claimed by this agent")
		}
		if t.Status != TaskClaimed && t.Status != TaskInProgress {
			return New(KindConflict, "task is not in a completable state")
		}
		now := s.now()
		t.Status = TaskDone
		t.CompletedAt = &now
		if err := s.putTask(ctx, t); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.setAgentCurrentTask(ctx, agentID, "")

	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("task_completed", seq, result)
	}
	return result, nil
}

// StartProgress transitions claimed→in_progress.
func (s *Store) StartProgress(ctx context.Context, taskID, agentID string) (*Task, error) {
	var result *Task
	err := s.withLock(ctx, "task:"+taskID, func() error {
		t, err := s.getTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t.ClaimedBy != agentID {
			return New(KindForbidden, "task is not claimed by this agent")
		}
		if t.Status != TaskClaimed {
			return New(KindConflict, "task is not in claimed state")
		}
		t.Status = TaskInProgress
		if err := s.putTask(ctx, t); err != nil {
			return err
		}
		result = t
		return nil
	})
	return result, err
}

// CancelTask transitions any non-terminal task to cancelled.
func (s *Store) CancelTask(ctx context.Context, taskID string) (*Task, error) {
	var result *Task
	err := s.withLock(ctx, "task:"+taskID, func() error {
		t, err := s.getTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t.Status == TaskDone || t.Status == TaskCancelled {
			return New(KindConflict, "task is already terminal")
		}
		t.Status = TaskCancelled
		if err := s.putTask(ctx, t); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("task_cancelled", seq, result)
	}
	return result, nil
}

// Tasks returns a snapshot of every task in the room, optionally
// filtered by status.
func (s *Store) Tasks(ctx context.Context, status TaskStatus) ([]*Task, error) {
	keys, err := s.backend.List(ctx, s.prefix()+"/tasks/")
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	out := make([]*Task, 0, len(keys))
	for _, k := range keys {
		id := strings.TrimPrefix(k, s.prefix()+"/tasks/")
		t, terr := s.getTask(ctx, id)
		if terr != nil {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) getTask(ctx context.Context, id string) (*Task, error) {
	raw, err := s.backend.Get(ctx, s.taskKey(id))
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	var t Task
	if err := unmarshal(raw, &t); err != nil {
		return nil, New(KindInternal, "corrupt task record: "+err.Error())
	}
	return &t, nil
}

func (s *Store) putTask(ctx context.Context, t *Task) error {
	data, err := marshal(t)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	if err := s.backend.Set(ctx, s.taskKey(t.ID), data); err != nil {
		return s.translateBackendErr(err)
	}
	return nil
}
