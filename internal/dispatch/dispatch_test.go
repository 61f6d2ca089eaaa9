package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masc-dev/masc/internal/authn"
	"github.com/masc-dev/masc/internal/backend/memory"
	"github.com/masc-dev/masc/internal/bus"
	"github.com/masc-dev/masc/internal/clock"
	"github.com/masc-dev/masc/internal/idgen"
	"github.com/masc-dev/masc/internal/room"
	"github.com/masc-dev/masc/internal/tools"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *room.Store) {
	t.Helper()
	store := room.New(room.Config{
		Backend: memory.New(),
		Bus:     bus.New(bus.Config{RingSize: 64}),
		Clock:   clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		IDs:     idgen.NewSeeded(1),
		Cluster: "cluster1",
		RoomID:  "room1",
	})
	registry := tools.RegisterAll()
	d := New(registry, store, AuthConfig{}, nil, nil)
	return d, store
}

func TestCallRejectsUnknownTool(t *testing.T) {
	d, _ := newTestDispatcher(t)
	_, err := d.Call(t.Context(), Request{ToolName: "masc_does_not_exist"})
	require.Error(t, err)
	assert.Equal(t, room.KindNotFound, room.KindOf(err))
}

func TestCallInvokesHandlerAndRecordsTelemetry(t *testing.T) {
	d, store := newTestDispatcher(t)
	result, err := d.Call(t.Context(), Request{
		ToolName: "masc_join",
		Arguments: map[string]any{
			"agent_id":     "agent-1",
			"capabilities": []any{"go"},
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, result)

	events, err := store.Telemetry().Events(t.Context())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "agent-1", events[0].AgentID)
	assert.Equal(t, true, events[0].Fields["success"])
}

func TestCallRejectsInvalidArguments(t *testing.T) {
	d, _ := newTestDispatcher(t)
	_, err := d.Call(t.Context(), Request{
		ToolName:  "masc_join",
		Arguments: map[string]any{},
	})
	require.Error(t, err)
	assert.Equal(t, room.KindInvalidArgument, room.KindOf(err))
}

func TestCallRespectsModeFilter(t *testing.T) {
	d, store := newTestDispatcher(t)
	_, err := store.SetMode(t.Context(), []string{"comm"})
	require.NoError(t, err)

	_, err = d.Call(t.Context(), Request{
		ToolName: "masc_join",
		Arguments: map[string]any{
			"agent_id": "agent-1",
		},
	})
	require.Error(t, err)
	assert.Equal(t, room.KindToolDisabled, room.KindOf(err))
}

func TestCallEnforcesAuthWhenEnabled(t *testing.T) {
	d, _ := newTestDispatcher(t)
	tokens := authn.NewRegistry()
	require.NoError(t, tokens.Add("agent-1", "s3cr3t"))
	d.auth = AuthConfig{Enabled: true, Tokens: tokens}

	_, err := d.Call(t.Context(), Request{
		ToolName:  "masc_join",
		Arguments: map[string]any{"agent_id": "agent-1"},
		Caller:    Caller{BearerToken: "wrong"},
	})
	require.Error(t, err)
	assert.Equal(t, room.KindUnauthorized, room.KindOf(err))

	_, err = d.Call(t.Context(), Request{
		ToolName:  "masc_join",
		Arguments: map[string]any{"agent_id": "agent-1"},
		Caller:    Caller{BearerToken: "s3cr3t"},
	})
	require.NoError(t, err)
}

func TestCallEnforcesRateLimit(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.auth = AuthConfig{RateLimiter: authn.NewRateLimiter(1, 0)}

	_, err := d.Call(t.Context(), Request{
		ToolName:  "masc_join",
		Arguments: map[string]any{"agent_id": "agent-1"},
		Caller:    Caller{ClientIP: "127.0.0.1"},
	})
	require.NoError(t, err)

	_, err = d.Call(t.Context(), Request{
		ToolName:  "masc_join",
		Arguments: map[string]any{"agent_id": "agent-2"},
		Caller:    Caller{ClientIP: "127.0.0.1"},
	})
	require.Error(t, err)
	assert.Equal(t, room.KindRateLimited, room.KindOf(err))
}

func TestCancelUnregisteredRequestIDReturnsFalse(t *testing.T) {
	d, _ := newTestDispatcher(t)
	// No handler in this registry blocks on ctx, so this only exercises
	// the bookkeeping: cancelling an unregistered ID is a no-op.
	assert.False(t, d.Cancel("never-registered"))
}

func TestGateRejectsCallsAfterClose(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.gate.Close()

	_, err := d.Call(t.Context(), Request{
		ToolName:  "masc_join",
		Arguments: map[string]any{"agent_id": "agent-1"},
	})
	require.Error(t, err)
	assert.Equal(t, room.KindCancelled, room.KindOf(err))
}
