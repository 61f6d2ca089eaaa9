package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/masc-dev/masc/internal/dispatch"
	"github.com/masc-dev/masc/internal/room"
)

// mcpHandler serves POST /mcp: one JSON-RPC 2.0 request per HTTP
// request, per spec.md §4.3. Supports "tools/list", "tools/call", and
// the "$/cancelRequest" notification.
type mcpHandler struct {
	dispatcher *dispatch.Dispatcher
}

func (h *mcpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, http.StatusOK, errorResponse(nil, CodeParseError, "invalid JSON-RPC envelope", nil))
		return
	}
	if req.JSONRPC != JSONRPCVersion {
		writeRPC(w, http.StatusOK, errorResponse(req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"", nil))
		return
	}

	switch req.Method {
	case "tools/list":
		h.handleToolsList(w, r, req)
	case "tools/call":
		h.handleToolsCall(w, r, req)
	case "$/cancelRequest":
		h.handleCancel(w, req)
	default:
		writeRPC(w, http.StatusOK, errorResponse(req.ID, CodeMethodNotFound, "unknown method: "+req.Method, nil))
	}
}

func (h *mcpHandler) handleToolsList(w http.ResponseWriter, r *http.Request, req RPCRequest) {
	descriptors := listToolsParam(r.Context(), h.dispatcher)
	writeRPC(w, http.StatusOK, successResponse(req.ID, map[string]any{"tools": descriptors}))
}

func (h *mcpHandler) handleToolsCall(w http.ResponseWriter, r *http.Request, req RPCRequest) {
	var params toolCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeRPC(w, http.StatusOK, errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error(), nil))
			return
		}
	}

	callReq := dispatch.Request{
		RequestID: req.ID.String(),
		ToolName:  params.Name,
		Arguments: params.Arguments,
		Caller:    callerFromRequest(r),
	}

	result, err := h.dispatcher.Call(r.Context(), callReq)
	if err != nil {
		writeRPCOrRawError(w, req.ID, err)
		return
	}
	writeRPC(w, http.StatusOK, successResponse(req.ID, map[string]any{
		"content": []map[string]any{{"type": "json", "json": result}},
	}))
}

func (h *mcpHandler) handleCancel(w http.ResponseWriter, req RPCRequest) {
	var params cancelParams
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &params)
	}
	h.dispatcher.Cancel(params.ID)
	// $/cancelRequest is a notification; there is no meaningful
	// result, but tools/call is issued over plain request/response
	// HTTP here (not a JSON-RPC batch/stream), so a cancel sent with an
	// id is still answered with a success envelope carrying
	// cancelled: true, whether or not a call was found to cancel.
	if req.ID != nil {
		writeRPC(w, http.StatusOK, successResponse(req.ID, map[string]any{"cancelled": true}))
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}

// callerFromRequest extracts the bearer token (if any) and client IP
// from an inbound request, for the Dispatcher's auth/rate-limit steps.
func callerFromRequest(r *http.Request) dispatch.Caller {
	token := ""
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = parts[1]
		}
	}
	ip := r.RemoteAddr
	if host, _, err := splitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return dispatch.Caller{BearerToken: token, ClientIP: ip}
}

func splitHostPort(addr string) (string, string, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return addr, "", nil
	}
	return addr[:idx], addr[idx+1:], nil
}

// writeRPCOrRawError implements spec.md §4.3 step 2-3's special
// casing: auth/rate-limit failures are plain HTTP-status bodies, not
// JSON-RPC error envelopes, since they reject the request before any
// JSON-RPC semantics apply. An unknown tool becomes -32601 and an
// argument error -32602 (with kind/details); every other domain error,
// including an absent entity, becomes a JSON-RPC -32000 error with
// kind/details, per spec.md §6.
func writeRPCOrRawError(w http.ResponseWriter, id *RPCID, err error) {
	kind := room.KindOf(err)
	switch kind {
	case room.KindUnauthorized:
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	case room.KindRateLimited:
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate_limited"})
		return
	case room.KindNotFound:
		// Only the dispatcher's unknown-tool error carries a "tool" detail.
		if e, ok := err.(*room.Error); ok && e.Details["tool"] != nil {
			writeRPC(w, http.StatusOK, errorResponse(id, CodeMethodNotFound, dispatch.MessageForError(err), nil))
			return
		}
	case room.KindInvalidArgument:
		writeRPC(w, http.StatusOK, errorResponse(id, CodeInvalidParams, dispatch.MessageForError(err), errDetails(err)))
		return
	}
	writeRPC(w, http.StatusOK, errorResponse(id, CodeDomainError, dispatch.MessageForError(err), errDetails(err)))
}

func errDetails(err error) any {
	var e *room.Error
	if re, ok := err.(*room.Error); ok {
		e = re
		return map[string]any{"kind": string(e.Kind), "details": e.Details}
	}
	return nil
}

func writeRPC(w http.ResponseWriter, status int, resp RPCResponse) {
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func listToolsParam(ctx context.Context, d *dispatch.Dispatcher) []map[string]any {
	tools := d.ListTools(ctx)
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"category":    string(t.Category),
			"inputSchema": json.RawMessage(t.Schema),
		})
	}
	return out
}
