package room

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masc-dev/masc/internal/backend/memory"
	"github.com/masc-dev/masc/internal/bus"
	"github.com/masc-dev/masc/internal/clock"
	"github.com/masc-dev/masc/internal/idgen"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(Config{
		Backend: memory.New(),
		Bus:     bus.New(bus.Config{RingSize: 64}),
		Clock:   clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		IDs:     idgen.NewSeeded(1),
		Cluster: "cluster1",
		RoomID:  "room1",
	})
}

func TestJoinIsIdempotentForActiveAgent(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	a1, err := s.Join(ctx, "agent-1", []string{"go"}, "Agent One")
	require.NoError(t, err)
	a2, err := s.Join(ctx, "agent-1", []string{"rust"}, "renamed")
	require.NoError(t, err)
	assert.Equal(t, a1.JoinedAt, a2.JoinedAt)
	assert.Equal(t, []string{"go"}, a2.Capabilities)
}

func TestTaskExclusivityOnlyOneClaimSucceeds(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	_, err := s.AddTask(ctx, "t1", "do work", 3, "", "", nil)
	require.NoError(t, err)

	const agents = 8
	var wg sync.WaitGroup
	results := make(chan error, agents)
	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.Claim(ctx, "t1", agentName(n))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case KindOf(err) == KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, agents-1, conflicts)
}

func agentName(n int) string {
	return "agent-" + string(rune('a'+n))
}

func TestClaimNextRespectsCapabilityFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	_, err := s.AddTask(ctx, "t1", "needs rust", 1, "", "", []string{"rust"})
	require.NoError(t, err)
	_, err = s.AddTask(ctx, "t2", "needs nothing", 2, "", "", nil)
	require.NoError(t, err)

	claimed, err := s.ClaimNext(ctx, "agent-1", []string{"go"})
	require.NoError(t, err)
	assert.Equal(t, "t2", claimed.ID)
}

func TestDoneRequiresClaimant(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	_, err := s.AddTask(ctx, "t1", "work", 1, "", "", nil)
	require.NoError(t, err)
	_, err = s.Claim(ctx, "t1", "agent-1")
	require.NoError(t, err)

	_, err = s.Done(ctx, "t1", "agent-2")
	assert.Equal(t, KindForbidden, KindOf(err))

	done, err := s.Done(ctx, "t1", "agent-1")
	require.NoError(t, err)
	assert.Equal(t, TaskDone, done.Status)
}

func TestLockExclusivity(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	_, err := s.AcquireLock(ctx, "agent-1", "src/main.ts", 0)
	require.NoError(t, err)

	_, err = s.AcquireLock(ctx, "agent-2", "src/main.ts", 0)
	assert.Equal(t, KindConflict, KindOf(err))

	err = s.ReleaseLock(ctx, "agent-2", "src/main.ts")
	assert.Equal(t, KindForbidden, KindOf(err))

	require.NoError(t, s.ReleaseLock(ctx, "agent-1", "src/main.ts"))

	_, err = s.AcquireLock(ctx, "agent-2", "src/main.ts", 0)
	assert.NoError(t, err)
}

func TestMessageMonotonicity(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	for i := 0; i < 5; i++ {
		_, err := s.Broadcast(ctx, "agent-1", "hello", PriorityNormal, MessageBroadcast)
		require.NoError(t, err)
	}

	r1, err := s.Messages(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, r1, 5)

	_, err = s.Broadcast(ctx, "agent-1", "more", PriorityNormal, MessageBroadcast)
	require.NoError(t, err)

	r2, err := s.Messages(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, r2, 6)

	for i := range r1 {
		assert.Equal(t, r1[i], r2[i])
	}
}

func TestHandoffStateMachine(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	_, err := s.Join(ctx, "agent-1", nil, "")
	require.NoError(t, err)

	h, err := s.HandoffCreate(ctx, &Handoff{FromAgent: "agent-1", Goal: "ship it"})
	require.NoError(t, err)

	claimed, err := s.HandoffClaim(ctx, h.ID, "agent-2")
	require.NoError(t, err)
	assert.Equal(t, HandoffClaimed, claimed.Status)

	_, err = s.HandoffClaim(ctx, h.ID, "agent-3")
	assert.Equal(t, KindConflict, KindOf(err))

	consumed, err := s.HandoffConsume(ctx, h.ID, "agent-2")
	require.NoError(t, err)
	assert.Equal(t, HandoffConsumed, consumed.Status)

	_, err = s.HandoffConsume(ctx, h.ID, "agent-2")
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestCheckpointStateMachine(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	c, err := s.CheckpointSave(ctx, "t1", `{"step":"init"}`, 1)
	require.NoError(t, err)

	_, err = s.CheckpointApprove(ctx, "t1", c.ID)
	assert.Equal(t, KindConflict, KindOf(err), "approve requires Interrupted")

	interrupted, err := s.CheckpointInterrupt(ctx, "t1", c.ID, "needs review")
	require.NoError(t, err)
	assert.Equal(t, CheckpointInterrupted, interrupted.Status)

	branch, err := s.CheckpointBranch(ctx, "t1", c.ID, "alt-path")
	require.NoError(t, err)
	assert.Equal(t, c.ID, branch.ParentCheckpointID)
	assert.Equal(t, c.Step+1, branch.Step)
	assert.Equal(t, CheckpointPending, branch.Status)

	interrupted2, err := s.CheckpointInterrupt(ctx, "t1", branch.ID, "")
	require.NoError(t, err)
	rejected, err := s.CheckpointReject(ctx, "t1", interrupted2.ID, "timeout")
	require.NoError(t, err)
	assert.Equal(t, CheckpointRejected, rejected.Status)
	assert.Equal(t, "timeout", rejected.RejectReason)
}

func TestCacheTTLExpiresOnRead(t *testing.T) {
	vc := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := New(Config{
		Backend: memory.New(),
		Clock:   vc,
		IDs:     idgen.NewSeeded(2),
		Cluster: "c",
		RoomID:  "r",
	})
	ctx := t.Context()

	_, err := s.CacheSet(ctx, "k1", "v1", time.Second, nil)
	require.NoError(t, err)

	got, err := s.CacheGet(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Value)

	vc.Advance(2 * time.Second)

	_, err = s.CacheGet(ctx, "k1")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestPortalSendRoutesToOtherParticipant(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	p, err := s.PortalOpen(ctx, "agent-1", "agent-2")
	require.NoError(t, err)

	require.NoError(t, s.PortalSend(ctx, p.ID, "agent-1", "hi there"))

	err = s.PortalSend(ctx, p.ID, "agent-3", "intruder")
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestVoteClosePicksMajority(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	v, err := s.VoteCreate(ctx, "pick one", []string{"a", "b"}, "agent-1")
	require.NoError(t, err)

	_, err = s.VoteCast(ctx, v.ID, "agent-1", "a")
	require.NoError(t, err)
	_, err = s.VoteCast(ctx, v.ID, "agent-2", "a")
	require.NoError(t, err)
	_, err = s.VoteCast(ctx, v.ID, "agent-3", "b")
	require.NoError(t, err)

	_, winners, err := s.VoteClose(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, winners)
}
