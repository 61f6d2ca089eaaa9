package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/masc-dev/masc/internal/backend/memory"
	"github.com/masc-dev/masc/internal/bus"
	"github.com/masc-dev/masc/internal/clock"
	"github.com/masc-dev/masc/internal/idgen"
	"github.com/masc-dev/masc/internal/room"
)

func newTestStore(t *testing.T, vc *clock.Virtual) *room.Store {
	t.Helper()
	return room.New(room.Config{
		Backend:           memory.New(),
		Bus:               bus.New(bus.Config{RingSize: 64}),
		Clock:             vc,
		IDs:               idgen.NewSeeded(1),
		Cluster:           "cluster1",
		RoomID:            "room1",
		HeartbeatTTL:      10 * time.Second,
		ZombieTTL:         20 * time.Second,
		HandoffTTL:        30 * time.Second,
		HandoffConsumeTTL: 30 * time.Second,
		InterruptTTL:      30 * time.Second,
	})
}

func TestNewRejectsNothingAndAppliesDefaults(t *testing.T) {
	vc := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := newTestStore(t, vc)

	sv, err := New(store, Config{}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, sv)
	assert.Equal(t, 30*time.Second, sv.cfg.TempoBase)
	assert.Equal(t, 10, sv.cfg.TempoConcurrencyTarget)
	assert.Equal(t, 24*time.Hour, sv.cfg.TelemetryRotation)
}

func TestCurrentIntervalClampsToBoundsAndPersistsTempo(t *testing.T) {
	vc := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := newTestStore(t, vc)
	ctx := t.Context()

	sv, err := New(store, Config{TempoBase: 30 * time.Second, TempoConcurrencyTarget: 10}, zap.NewNop())
	require.NoError(t, err)

	interval := sv.currentInterval(ctx)
	assert.Equal(t, 30*time.Second, interval)

	info, err := store.RoomInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, interval.Seconds(), info.Tempo)
}

func TestCurrentIntervalScalesUpWithActiveTasks(t *testing.T) {
	vc := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := newTestStore(t, vc)
	ctx := t.Context()

	_, err := store.Join(ctx, "agent-1", nil, "Agent One")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		task, err := store.AddTask(ctx, "", "work", 3, "", "", nil)
		require.NoError(t, err)
		_, err = store.Claim(ctx, task.ID, "agent-1")
		require.NoError(t, err)
	}

	sv, err := New(store, Config{TempoBase: 30 * time.Second, TempoConcurrencyTarget: 10}, zap.NewNop())
	require.NoError(t, err)

	interval := sv.currentInterval(ctx)
	assert.Equal(t, 60*time.Second, interval)
}

func TestCurrentIntervalNeverExceedsMax(t *testing.T) {
	vc := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := newTestStore(t, vc)
	ctx := t.Context()

	_, err := store.Join(ctx, "agent-1", nil, "Agent One")
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		task, err := store.AddTask(ctx, "", "work", 3, "", "", nil)
		require.NoError(t, err)
		_, err = store.Claim(ctx, task.ID, "agent-1")
		require.NoError(t, err)
	}

	sv, err := New(store, Config{TempoBase: 30 * time.Second, TempoConcurrencyTarget: 10}, zap.NewNop())
	require.NoError(t, err)

	interval := sv.currentInterval(ctx)
	assert.Equal(t, 300*time.Second, interval)
}

func TestStartAndStopRunCleanly(t *testing.T) {
	vc := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := newTestStore(t, vc)
	ctx := t.Context()

	sv, err := New(store, Config{TempoBase: 1 * time.Hour, TempoConcurrencyTarget: 10}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, sv.Start(ctx))
	require.NoError(t, sv.Stop())
}

func TestSweepCacheForcesExpiryWithoutError(t *testing.T) {
	vc := clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := newTestStore(t, vc)
	ctx := t.Context()

	_, err := store.CacheSet(ctx, "k", "v", 5*time.Second, nil)
	require.NoError(t, err)
	vc.Advance(6 * time.Second)

	sv, err := New(store, Config{}, zap.NewNop())
	require.NoError(t, err)

	n, err := sv.sweepCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	live, err := store.CacheList(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, live)
}
