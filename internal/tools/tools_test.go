package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masc-dev/masc/internal/backend/memory"
	"github.com/masc-dev/masc/internal/bus"
	"github.com/masc-dev/masc/internal/clock"
	"github.com/masc-dev/masc/internal/idgen"
	"github.com/masc-dev/masc/internal/room"
)

func newToolsTestStore(t *testing.T) *room.Store {
	t.Helper()
	return room.New(room.Config{
		Backend: memory.New(),
		Bus:     bus.New(bus.Config{RingSize: 64}),
		Clock:   clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		IDs:     idgen.NewSeeded(1),
		Cluster: "cluster1",
		RoomID:  "room1",
	})
}

func TestRegisterAllPopulatesEveryCategory(t *testing.T) {
	r := RegisterAll()
	seen := map[Category]bool{}
	for _, tool := range r.List(nil) {
		seen[tool.Category] = true
	}
	for _, cat := range AllCategories {
		assert.True(t, seen[cat], "category %s has no registered tool", cat)
	}
}

func TestRegistryGetFindsRegisteredTool(t *testing.T) {
	r := RegisterAll()
	tool, ok := r.Get("masc_join")
	require.True(t, ok)
	assert.Equal(t, CategoryCore, tool.Category)
}

func TestRegistryListFiltersByEnabledCategories(t *testing.T) {
	r := RegisterAll()
	only := r.List(map[Category]bool{CategoryCore: true})
	for _, tool := range only {
		assert.Equal(t, CategoryCore, tool.Category)
	}
	assert.NotEmpty(t, only)
}

func TestValidateRejectsMissingRequiredArgument(t *testing.T) {
	r := RegisterAll()
	tool, ok := r.Get("masc_join")
	require.True(t, ok)

	err := tool.Validate(map[string]any{})
	require.Error(t, err)
	var roomErr *room.Error
	require.ErrorAs(t, err, &roomErr)
	assert.Equal(t, room.KindInvalidArgument, roomErr.Kind)
}

func TestValidateAcceptsWellFormedArguments(t *testing.T) {
	r := RegisterAll()
	tool, ok := r.Get("masc_join")
	require.True(t, ok)

	err := tool.Validate(map[string]any{"agent_id": "agent-1"})
	assert.NoError(t, err)
}

func TestJoinHandlerCreatesAgent(t *testing.T) {
	store := newToolsTestStore(t)
	r := RegisterAll()
	tool, ok := r.Get("masc_join")
	require.True(t, ok)

	out, err := tool.Handler(t.Context(), store, map[string]any{"agent_id": "agent-1"})
	require.NoError(t, err)
	agent, ok := out.(*room.Agent)
	require.True(t, ok)
	assert.Equal(t, "agent-1", agent.ID)
}

func TestAddTaskAndClaimHandlersRoundTrip(t *testing.T) {
	store := newToolsTestStore(t)
	r := RegisterAll()

	join, _ := r.Get("masc_join")
	_, err := join.Handler(t.Context(), store, map[string]any{"agent_id": "agent-1"})
	require.NoError(t, err)

	addTask, ok := r.Get("masc_add_task")
	require.True(t, ok)
	out, err := addTask.Handler(t.Context(), store, map[string]any{"title": "do a thing"})
	require.NoError(t, err)
	task, ok := out.(*room.Task)
	require.True(t, ok)

	claim, ok := r.Get("masc_claim")
	require.True(t, ok)
	out, err = claim.Handler(t.Context(), store, map[string]any{"task_id": task.ID, "agent_id": "agent-1"})
	require.NoError(t, err)
	claimed, ok := out.(*room.Task)
	require.True(t, ok)
	assert.Equal(t, room.TaskClaimed, claimed.Status)
}

func TestTempoSetHandlerPersistsTempo(t *testing.T) {
	store := newToolsTestStore(t)
	r := RegisterAll()
	tool, ok := r.Get("masc_tempo_set")
	require.True(t, ok)

	out, err := tool.Handler(t.Context(), store, map[string]any{"seconds": float64(60)})
	require.NoError(t, err)
	info, ok := out.(*room.Room)
	require.True(t, ok)
	assert.Equal(t, float64(60), info.Tempo)
}

func TestPauseAndResumeHandlersToggleRoomState(t *testing.T) {
	store := newToolsTestStore(t)
	r := RegisterAll()

	pause, ok := r.Get("masc_pause")
	require.True(t, ok)
	out, err := pause.Handler(t.Context(), store, map[string]any{"reason": "maintenance"})
	require.NoError(t, err)
	info := out.(*room.Room)
	assert.True(t, info.Paused)

	resume, ok := r.Get("masc_resume")
	require.True(t, ok)
	out, err = resume.Handler(t.Context(), store, map[string]any{})
	require.NoError(t, err)
	info = out.(*room.Room)
	assert.False(t, info.Paused)
}

func TestHealthHandlerReportsAgentAndTaskCounts(t *testing.T) {
	store := newToolsTestStore(t)
	r := RegisterAll()

	join, _ := r.Get("masc_join")
	_, err := join.Handler(t.Context(), store, map[string]any{"agent_id": "agent-1"})
	require.NoError(t, err)

	addTask, _ := r.Get("masc_add_task")
	_, err = addTask.Handler(t.Context(), store, map[string]any{"title": "work"})
	require.NoError(t, err)

	health, ok := r.Get("masc_health")
	require.True(t, ok)
	out, err := health.Handler(t.Context(), store, map[string]any{})
	require.NoError(t, err)
	snap, ok := out.(*HealthSnapshot)
	require.True(t, ok)
	assert.Equal(t, 1, snap.AgentCount)
	assert.Equal(t, 1, snap.PendingTasks)
}

func TestAuthAddTokenFailsWithoutRegistryWired(t *testing.T) {
	store := newToolsTestStore(t)
	r := RegisterAll()
	addToken, ok := r.Get("masc_auth_add_token")
	require.True(t, ok)

	_, err := addToken.Handler(t.Context(), store, map[string]any{"name": "agent-1", "token": "s3cr3t"})
	require.Error(t, err)
	var roomErr *room.Error
	require.ErrorAs(t, err, &roomErr)
	assert.Equal(t, room.KindInternal, roomErr.Kind)
}

func TestRunCommandHandlerReturnsDelegatedStub(t *testing.T) {
	store := newToolsTestStore(t)
	r := RegisterAll()
	tool, ok := r.Get("masc_run_command")
	require.True(t, ok)

	out, err := tool.Handler(t.Context(), store, map[string]any{"agent_id": "agent-1", "command": "echo hi"})
	require.NoError(t, err)
	assert.NotNil(t, out)
}
