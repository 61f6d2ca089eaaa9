package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

func newRESTTestStore(t *testing.T) *room.Store {
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

func TestRESTAgentsReturnsDataEnvelope(t *testing.T) {
	store := newRESTTestStore(t)
	ctx := t.Context()
	_, err := store.Join(ctx, "agent-1", nil, "Agent One")
	require.NoError(t, err)

	h := &restHandler{store: store}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	rec := httptest.NewRecorder()
	h.Agents(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "agent-1", out.Data[0]["id"])
}

func TestRESTTasksFiltersByStatus(t *testing.T) {
	store := newRESTTestStore(t)
	ctx := t.Context()
	_, err := store.AddTask(ctx, "", "do a thing", 3, "", "", nil)
	require.NoError(t, err)

	h := &restHandler{store: store}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks?status=pending", nil)
	rec := httptest.NewRecorder()
	h.Tasks(rec, req)

	var out struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/tasks?status=done", nil)
	rec2 := httptest.NewRecorder()
	h.Tasks(rec2, req2)
	var out2 struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &out2))
	assert.Empty(t, out2.Data)
}

func TestRESTMessagesRespectsLimit(t *testing.T) {
	store := newRESTTestStore(t)

	h := &restHandler{store: store}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages?limit=5", nil)
	rec := httptest.NewRecorder()
	h.Messages(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRESTStatusMirrorsHealthTool(t *testing.T) {
	store := newRESTTestStore(t)
	h := &restHandler{store: store}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out.Data)
}

func TestRESTCreditsEmptyWhenNoTelemetryEvents(t *testing.T) {
	store := newRESTTestStore(t)
	h := &restHandler{store: store}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits", nil)
	rec := httptest.NewRecorder()
	h.Credits(rec, req)

	var out struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out.Data)
}

func TestHealthHandlerServesSharedSnapshot(t *testing.T) {
	store := newRESTTestStore(t)
	handler := healthHandler(store)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAgentCardHandlerServesJSON(t *testing.T) {
	handler := agentCardHandler()
	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent-card.json", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}
