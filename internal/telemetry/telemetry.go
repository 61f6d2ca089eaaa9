// Package telemetry implements the append-only event log and the
// derived per-agent aggregates that feed the fitness, Hebbian, and
// drift selection subsystems. Grounded on spec.md §3's Telemetry event
// and the teacher's audit-style append patterns in internal/db.
package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/masc-dev/masc/internal/backend"
	"github.com/masc-dev/masc/internal/clock"
)

// Kind enumerates the telemetry event kinds named in spec.md §3.
type Kind string

const (
	KindAgentJoined      Kind = "agent_joined"
	KindAgentLeft        Kind = "agent_left"
	KindTaskStarted      Kind = "task_started"
	KindTaskCompleted    Kind = "task_completed"
	KindHandoffTriggered Kind = "handoff_triggered"
	KindError            Kind = "error"
	KindToolCalled        Kind = "tool_called"
)

// Event is one append-only telemetry record.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Kind      Kind           `json:"kind"`
	AgentID   string         `json:"agent_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Recorder appends telemetry events to, and reads them back from, a
// single backend-backed log key.
type Recorder struct {
	backend backend.Backend
	logKey  string
	clock   clock.Clock
}

// New constructs a Recorder over logKey. If clk is nil, the real
// system clock is used.
func New(be backend.Backend, logKey string, clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.New()
	}
	return &Recorder{backend: be, logKey: logKey, clock: clk}
}

// Record appends one event. Failures are returned, not swallowed — the
// caller decides whether a telemetry write failure should affect the
// operation it describes (per spec.md, telemetry is best-effort but
// callers may log a Record failure without failing the request).
func (r *Recorder) Record(ctx context.Context, kind Kind, agentID string, fields map[string]any) error {
	e := Event{
		Timestamp: r.clock.Now(),
		Kind:      kind,
		AgentID:   agentID,
		Fields:    fields,
	}
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.backend.Append(ctx, r.logKey, string(line))
}

// Events returns every event recorded so far, in append order.
func (r *Recorder) Events(ctx context.Context) ([]Event, error) {
	lines, err := r.backend.ReadLog(ctx, r.logKey)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(lines))
	for _, line := range lines {
		var e Event
		if json.Unmarshal([]byte(line), &e) != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Credits tallies agentID's tool_called activity into a running
// request/token counter, per spec.md §9's supplemented `masc_credits`
// note: cost is read off the telemetry log rather than tracked by a
// separate ledger, since no external LLM billing integration is in
// scope.
type Credits struct {
	AgentID string `json:"agent_id"`
	Calls   int64  `json:"calls"`
	Tokens  float64 `json:"tokens"`
}

// AllCredits aggregates Credits for every agent that appears in
// events, keyed by agent id.
func AllCredits(events []Event) map[string]*Credits {
	out := make(map[string]*Credits)
	for _, e := range events {
		if e.Kind != KindToolCalled || e.AgentID == "" {
			continue
		}
		c, ok := out[e.AgentID]
		if !ok {
			c = &Credits{AgentID: e.AgentID}
			out[e.AgentID] = c
		}
		c.Calls++
		if t, ok := e.Fields["tokens"].(float64); ok {
			c.Tokens += t
		}
	}
	return out
}

// Rotate archives the current log under a dated key and truncates the
// live log, per spec.md §4.5's daily telemetry rotation. It returns the
// archive key it wrote to, or an empty string if the log was already
// empty.
func (r *Recorder) Rotate(ctx context.Context) (string, error) {
	lines, err := r.backend.ReadLog(ctx, r.logKey)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", nil
	}
	archiveKey := r.logKey + "." + r.clock.Now().Format("2006-01-02")
	for _, line := range lines {
		if err := r.backend.Append(ctx, archiveKey, line); err != nil {
			return "", err
		}
	}
	if err := r.backend.Delete(ctx, r.logKey); err != nil {
		return "", err
	}
	return archiveKey, nil
}
