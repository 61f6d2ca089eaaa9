package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masc-dev/masc/internal/authn"
	"github.com/masc-dev/masc/internal/backend/memory"
	"github.com/masc-dev/masc/internal/bus"
	"github.com/masc-dev/masc/internal/clock"
	"github.com/masc-dev/masc/internal/dispatch"
	"github.com/masc-dev/masc/internal/idgen"
	"github.com/masc-dev/masc/internal/room"
	"github.com/masc-dev/masc/internal/tools"
)

func newTestDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	store := room.New(room.Config{
		Backend: memory.New(),
		Bus:     bus.New(bus.Config{RingSize: 64}),
		Clock:   clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		IDs:     idgen.NewSeeded(1),
		Cluster: "cluster1",
		RoomID:  "room1",
	})
	return dispatch.New(tools.RegisterAll(), store, dispatch.AuthConfig{}, nil, nil)
}

func doMCP(t *testing.T, h *mcpHandler, body string) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestToolsListReturnsDescriptors(t *testing.T) {
	h := &mcpHandler{dispatcher: newTestDispatcher(t)}
	_, resp := doMCP(t, h, `{"jsonrpc":"2.0","id":"1","method":"tools/list"}`)
	require.Nil(t, resp.Error)

	var out struct {
		Tools []map[string]any `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	assert.NotEmpty(t, out.Tools)
}

func TestToolsCallSucceeds(t *testing.T) {
	h := &mcpHandler{dispatcher: newTestDispatcher(t)}
	body := `{"jsonrpc":"2.0","id":"1","method":"tools/call","params":{"name":"masc_join","arguments":{"agent_id":"agent-1"}}}`
	_, resp := doMCP(t, h, body)
	require.Nil(t, resp.Error)

	var out struct {
		Content []map[string]any `json:"content"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	require.Len(t, out.Content, 1)
}

func TestToolsCallUnknownToolReturnsMethodNotFound(t *testing.T) {
	h := &mcpHandler{dispatcher: newTestDispatcher(t)}
	body := `{"jsonrpc":"2.0","id":"1","method":"tools/call","params":{"name":"masc_does_not_exist","arguments":{}}}`
	_, resp := doMCP(t, h, body)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestToolsCallInvalidArgumentReturnsInvalidParams(t *testing.T) {
	h := &mcpHandler{dispatcher: newTestDispatcher(t)}
	body := `{"jsonrpc":"2.0","id":"1","method":"tools/call","params":{"name":"masc_join","arguments":{}}}`
	_, resp := doMCP(t, h, body)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	h := &mcpHandler{dispatcher: newTestDispatcher(t)}
	_, resp := doMCP(t, h, `{"jsonrpc":"2.0","id":"1","method":"bogus"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestMalformedJSONReturnsParseError(t *testing.T) {
	h := &mcpHandler{dispatcher: newTestDispatcher(t)}
	_, resp := doMCP(t, h, `not json`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}

func TestWrongJSONRPCVersionReturnsInvalidRequest(t *testing.T) {
	h := &mcpHandler{dispatcher: newTestDispatcher(t)}
	_, resp := doMCP(t, h, `{"jsonrpc":"1.0","id":"1","method":"tools/list"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestCancelRequestNotificationReturnsNoContent(t *testing.T) {
	d := newTestDispatcher(t)
	h := &mcpHandler{dispatcher: d}

	body := `{"jsonrpc":"2.0","method":"$/cancelRequest","params":{"id":"nonexistent"}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthEnforcedReturnsRawHTTP401(t *testing.T) {
	store := room.New(room.Config{
		Backend: memory.New(),
		Bus:     bus.New(bus.Config{RingSize: 64}),
		Clock:   clock.NewVirtual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		IDs:     idgen.NewSeeded(1),
		Cluster: "cluster1",
		RoomID:  "room1",
	})
	tokens := authn.NewRegistry()
	require.NoError(t, tokens.Add("agent-1", "s3cr3t"))
	d := dispatch.New(tools.RegisterAll(), store, dispatch.AuthConfig{Enabled: true, Tokens: tokens}, nil, nil)
	h := &mcpHandler{dispatcher: d}

	body := `{"jsonrpc":"2.0","id":"1","method":"tools/call","params":{"name":"masc_join","arguments":{"agent_id":"agent-1"}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
