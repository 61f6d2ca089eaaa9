// Package dispatch implements the Tool Dispatcher envelope of
// spec.md §4.3: lookup, auth, rate limit, mode filter, schema
// validation, shutdown-drain registration, handler invocation with a
// cancellation handle (handlers receive no progress emitter),
// telemetry, and error translation. Grounded on the teacher's router -> middleware ->
// handler layering (internal/api/router.go, internal/api/middleware.go),
// translated from chi's middleware chain into one explicit envelope
// function since JSON-RPC dispatch is name-keyed rather than
// path-routed.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/masc-dev/masc/internal/authn"
	"github.com/masc-dev/masc/internal/drain"
	"github.com/masc-dev/masc/internal/room"
	"github.com/masc-dev/masc/internal/tools"
)

// Progress is a progress-report callback a transport may set on
// Request.OnProgress. tools.Handler takes no progress argument, so no
// handler reports progress and Call never invokes it.
type Progress func(message string, pct float64)

// Caller identifies the party making a call, for auth and rate
// limiting (spec.md §4.3 steps 2-3).
type Caller struct {
	// BearerToken is the raw token from the Authorization header, or
	// "" if none was presented.
	BearerToken string
	// ClientIP is used as the rate-limit key when BearerToken is empty.
	ClientIP string
}

func (c Caller) rateLimitKey() string {
	if c.BearerToken != "" {
		return "token:" + c.BearerToken
	}
	return "ip:" + c.ClientIP
}

// Request is one tools/call invocation.
type Request struct {
	// RequestID correlates this call with a later $/cancelRequest.
	// Optional — calls with no ID cannot be cancelled by name.
	RequestID string
	ToolName  string
	Arguments map[string]any
	Caller    Caller
	// OnProgress is an optional progress callback. Handlers make no
	// progress reports, so it is never called; the /mcp transport
	// leaves it nil.
	OnProgress Progress
}

// AuthConfig controls whether the dispatcher enforces bearer-token
// auth and rate limiting, per spec.md §4.3 steps 2-3 being conditional
// on "if auth is enabled".
type AuthConfig struct {
	Enabled     bool
	Tokens      *authn.Registry
	RateLimiter *authn.RateLimiter // nil disables rate limiting
}

// Dispatcher wires a tool Registry to one Room Store.
type Dispatcher struct {
	registry *tools.Registry
	store    *room.Store
	auth     AuthConfig
	gate     *drain.Gate
	progress func(kind string, fields map[string]any)
	onCall   func(tool string, success bool, seconds float64)

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc
}

// New builds a Dispatcher. progressSink, if non-nil, would receive a
// tool_progress event for each report made through a wrapped
// Request.OnProgress; since handlers make no reports it is never
// called, and cmd/mascd passes nil.
func New(registry *tools.Registry, store *room.Store, auth AuthConfig, gate *drain.Gate, progressSink func(kind string, fields map[string]any)) *Dispatcher {
	if gate == nil {
		gate = drain.New()
	}
	return &Dispatcher{
		registry: registry,
		store:    store,
		auth:     auth,
		gate:     gate,
		progress: progressSink,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// OnCall registers a hook invoked after every completed call (not
// auth/rate-limit/lookup rejections, which never reach the handler)
// with the tool name, success, and wall time — cmd/mascd wires this to
// a Prometheus observer without this package needing to import
// anything metrics-related.
func (d *Dispatcher) OnCall(fn func(tool string, success bool, seconds float64)) {
	d.onCall = fn
}

// Gate exposes the drain gate so transport shutdown can wait on it.
func (d *Dispatcher) Gate() *drain.Gate { return d.gate }

// ListTools returns every tool visible under the Room's current mode,
// for the "tools/list" JSON-RPC method and the masc_list_tools tool
// itself to share one source of truth.
func (d *Dispatcher) ListTools(ctx context.Context) []*tools.Tool {
	info, err := d.store.RoomInfo(ctx)
	if err != nil || len(info.Mode) == 0 {
		return d.registry.List(nil)
	}
	enabled := make(map[tools.Category]bool, len(info.Mode))
	for _, c := range info.Mode {
		enabled[tools.Category(c)] = true
	}
	return d.registry.List(enabled)
}

// Cancel looks up requestID's cancellation handle and invokes it, per
// spec.md §5's "$/cancelRequest" suspension point. Returns false if no
// in-flight call is registered under that ID (already finished, or
// never had one).
func (d *Dispatcher) Cancel(requestID string) bool {
	if requestID == "" {
		return false
	}
	d.cancelMu.Lock()
	cancel, ok := d.cancels[requestID]
	d.cancelMu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

func (d *Dispatcher) registerCancel(requestID string, cancel context.CancelFunc) {
	if requestID == "" {
		return
	}
	d.cancelMu.Lock()
	d.cancels[requestID] = cancel
	d.cancelMu.Unlock()
}

func (d *Dispatcher) forgetCancel(requestID string) {
	if requestID == "" {
		return
	}
	d.cancelMu.Lock()
	delete(d.cancels, requestID)
	d.cancelMu.Unlock()
}

// Call runs the full dispatcher envelope for one tools/call request.
func (d *Dispatcher) Call(ctx context.Context, req Request) (any, error) {
	// 1. Lookup.
	t, ok := d.registry.Get(req.ToolName)
	if !ok {
		return nil, room.Newf(room.KindNotFound, "unknown tool: "+req.ToolName, map[string]any{"tool": req.ToolName})
	}

	// 2. Authentication.
	if d.auth.Enabled {
		if d.auth.Tokens == nil || !d.auth.Tokens.Authenticate(req.Caller.BearerToken) {
			return nil, room.New(room.KindUnauthorized, "invalid or missing bearer token")
		}
	}

	// 3. Rate limit.
	if d.auth.RateLimiter != nil {
		if !d.auth.RateLimiter.Allow(req.Caller.rateLimitKey()) {
			return nil, room.New(room.KindRateLimited, "rate limit exceeded")
		}
	}

	// 4. Mode/category filter.
	enabled, err := d.store.CategoryEnabled(ctx, string(t.Category))
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, room.Newf(room.KindToolDisabled, "tool disabled by room mode: "+req.ToolName, map[string]any{"category": string(t.Category)})
	}

	// 5. Schema validation.
	if err := t.Validate(req.Arguments); err != nil {
		return nil, err
	}

	// 6. Shutdown-drain registration.
	if !d.gate.Enter() {
		return nil, room.New(room.KindCancelled, "server is shutting down")
	}
	defer d.gate.Leave()

	// 7. Handler invocation with cancellation + progress.
	callCtx, cancel := context.WithCancel(ctx)
	d.registerCancel(req.RequestID, cancel)
	defer func() {
		cancel()
		d.forgetCancel(req.RequestID)
	}()

	if req.OnProgress != nil && d.progress != nil {
		// Progress reports also fan out on the Bus so other
		// subscribers (dashboards, SSE clients) can observe them,
		// not just the caller who made the request.
		wrapped := req.OnProgress
		req.OnProgress = func(message string, pct float64) {
			wrapped(message, pct)
			d.progress("tool_progress", map[string]any{
				"tool": req.ToolName, "message": message, "pct": pct,
			})
		}
	}

	start := time.Now()
	result, callErr := t.Handler(callCtx, d.store, req.Arguments)
	duration := time.Since(start)

	if d.onCall != nil {
		d.onCall(req.ToolName, callErr == nil, duration.Seconds())
	}

	// 8. Telemetry.
	if rec := d.store.Telemetry(); rec != nil {
		fields := map[string]any{
			"tool":        req.ToolName,
			"success":     callErr == nil,
			"duration_ms": duration.Milliseconds(),
		}
		if callErr != nil {
			fields["error_kind"] = string(room.KindOf(callErr))
		}
		_ = rec.Record(ctx, "tool_called", agentIDFromArgs(req.Arguments), fields)
	}

	// 9. Result or translated error.
	if callErr != nil {
		return nil, callErr
	}
	return result, nil
}

// agentIDFromArgs best-effort extracts an agent_id field for telemetry
// attribution — most tools accept one, but dispatch must not fail a
// call just because a given tool's schema omits it.
func agentIDFromArgs(args map[string]any) string {
	if v, ok := args["agent_id"].(string); ok {
		return v
	}
	if v, ok := args["from_agent"].(string); ok {
		return v
	}
	if v, ok := args["parent_agent"].(string); ok {
		return v
	}
	return ""
}

// DomainErrorCode is the JSON-RPC error code spec.md §6 reserves for
// the Room Store's error taxonomy: a domain error is -32000 with
// kind/details in data. The JSON-RPC protocol-level codes
// (-32700..-32603) are used for malformed envelopes and, for a
// Dispatcher.Call result, only for an unknown tool (-32601) and
// invalid arguments (-32602); unauthorized and rate_limited are sent
// as raw HTTP 401/429 bodies.
const DomainErrorCode = -32000

// MessageForError renders a human-readable message for a dispatcher
// error, falling back to Go's default for anything that is not a
// *room.Error (which should not happen in practice, since every Store
// method and tool handler returns the taxonomy).
func MessageForError(err error) string {
	if err == nil {
		return ""
	}
	var e *room.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
