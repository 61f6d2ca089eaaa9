package room

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/masc-dev/masc/internal/backend"
	"github.com/masc-dev/masc/internal/bus"
	"github.com/masc-dev/masc/internal/clock"
	"github.com/masc-dev/masc/internal/crypt"
	"github.com/masc-dev/masc/internal/idgen"
	"github.com/masc-dev/masc/internal/telemetry"
)

// Store is the Room Store: the sole mutator of Room state, built on
// top of a Backend. Every exported method follows the five-step
// contract in spec.md §4.2: validate, lock, read, compute+check
// invariants, write (CAS where needed), then publish a notification
// with a monotone seq.
type Store struct {
	backend backend.Backend
	bus     *bus.Bus
	clock   clock.Clock
	ids     idgen.Generator
	box     *crypt.Box
	telemetry *telemetry.Recorder

	cluster string
	roomID  string

	heartbeatTTL time.Duration
	zombieTTL    time.Duration
	handoffTTL   time.Duration
	handoffConsumeTTL time.Duration
	interruptTTL time.Duration
}

// Config configures a new Store.
type Config struct {
	Backend      backend.Backend
	Bus          *bus.Bus
	Clock        clock.Clock
	IDs          idgen.Generator
	Box          *crypt.Box
	Telemetry    *telemetry.Recorder
	Cluster      string
	RoomID       string
	HeartbeatTTL time.Duration
	ZombieTTL    time.Duration
	HandoffTTL   time.Duration
	HandoffConsumeTTL time.Duration
	InterruptTTL time.Duration
}

// New constructs a Store. It does not touch the backend until a
// method is called.
func New(cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.IDs == nil {
		cfg.IDs = idgen.New()
	}
	if cfg.Box == nil {
		cfg.Box, _ = crypt.NewBox(nil)
	}
	if cfg.Telemetry == nil && cfg.Backend != nil {
		cfg.Telemetry = telemetry.New(cfg.Backend, fmt.Sprintf("rooms/%s/%s/telemetry", cfg.Cluster, cfg.RoomID), cfg.Clock)
	}
	return &Store{
		backend:            cfg.Backend,
		bus:                cfg.Bus,
		clock:              cfg.Clock,
		ids:                cfg.IDs,
		box:                cfg.Box,
		telemetry:          cfg.Telemetry,
		cluster:            cfg.Cluster,
		roomID:             cfg.RoomID,
		heartbeatTTL:       cfg.HeartbeatTTL,
		zombieTTL:          cfg.ZombieTTL,
		handoffTTL:         cfg.HandoffTTL,
		handoffConsumeTTL:  cfg.HandoffConsumeTTL,
		interruptTTL:       cfg.InterruptTTL,
	}
}

// Telemetry exposes the Store's telemetry recorder so the Tool
// Dispatcher can emit tool_called events and selection subsystems
// (fitness, hebbian, drift, cost) can read the log back, without every
// caller needing to re-derive the room's telemetry log key.
func (s *Store) Telemetry() *telemetry.Recorder { return s.telemetry }

// EncryptionEnabled reports whether MASC_ENCRYPTION_KEY was configured,
// i.e. whether handoff capsules, cache values, and checkpoint state
// are sealed at rest.
func (s *Store) EncryptionEnabled() bool { return s.box.Enabled() }

// RoomID returns the room this Store manages.
func (s *Store) RoomID() string { return s.roomID }

func (s *Store) prefix() string {
	return fmt.Sprintf("rooms/%s/%s", s.cluster, s.roomID)
}

func (s *Store) agentKey(id string) string      { return s.prefix() + "/agents/" + id }
func (s *Store) taskKey(id string) string       { return s.prefix() + "/tasks/" + id }
func (s *Store) messagesLogKey() string         { return s.prefix() + "/messages" }
func (s *Store) messageSeqKey() string          { return s.prefix() + "/messages_seq" }
func (s *Store) lockKey(path string) string     { return s.prefix() + "/locks/" + sanitizeKey(path) }
func (s *Store) voteKey(id string) string       { return s.prefix() + "/votes/" + id }
func (s *Store) portalKey(id string) string     { return s.prefix() + "/portals/" + id }
func (s *Store) handoffKey(id string) string    { return s.prefix() + "/handovers/" + id }
func (s *Store) checkpointKey(taskID, id string) string {
	return s.prefix() + "/checkpoints/" + taskID + "/" + id
}
func (s *Store) cacheKey(key string) string     { return s.prefix() + "/cache/" + sanitizeKey(key) }
func (s *Store) synapseKey(from, to string) string {
	return s.prefix() + "/synapses/" + from + "->" + to
}
func (s *Store) telemetryLogKey() string { return s.prefix() + "/telemetry" }

// sanitizeKey matches spec.md §6: non-alphanumeric → "_", capped at 64
// chars.
func sanitizeKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

// withLock acquires a backend lock on scope for the duration of fn.
func (s *Store) withLock(ctx context.Context, scope string, fn func() error) error {
	g, err := s.backend.Lock(ctx, scope)
	if err != nil {
		return s.translateBackendErr(err)
	}
	defer g.Release(ctx)
	return fn()
}

// retryTransient retries fn up to 3 times with capped exponential
// back-off (base 100ms, ±20% jitter) when it returns a transient
// Backend error, per spec.md §7's propagation policy. Generalized from
// the polling shape of the teacher's agentmanager.WaitForAgent into a
// backoff loop.
func (s *Store) retryTransient(ctx context.Context, fn func() error) error {
	const maxAttempts = 3
	const base = 100 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil || !backend.IsTransient(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		wait := base * time.Duration(1<<attempt)
		jitter := time.Duration(float64(wait) * (rand.Float64()*0.4 - 0.2))
		select {
		case <-s.clock.After(wait + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return New(KindBackendFatal, "backend retries exhausted: "+err.Error())
}

// translateBackendErr maps a backend.Error into the room Kind
// taxonomy.
func (s *Store) translateBackendErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case backend.IsNotFound(err):
		return New(KindNotFound, err.Error())
	case backend.IsConflict(err):
		return New(KindConflict, err.Error())
	case backend.IsTransient(err):
		return New(KindBackendTransient, err.Error())
	default:
		return New(KindBackendFatal, err.Error())
	}
}

// nextSeq atomically allocates the next monotone message/event seq for
// this room via a CAS loop on a dedicated counter key, continuing
// above the max persisted value after restart per spec.md §3.
func (s *Store) nextSeq(ctx context.Context) (int64, error) {
	var result int64
	casOnce := func() error {
		cur, err := s.backend.Get(ctx, s.messageSeqKey())
		if err != nil && !backend.IsNotFound(err) {
			return err
		}
		var n int64
		if cur != "" {
			n, _ = strconv.ParseInt(cur, 10, 64)
		}
		next := n + 1
		expected := cur
		newVal := strconv.FormatInt(next, 10)
		casErr := s.backend.CAS(ctx, s.messageSeqKey(), expected, newVal)
		if casErr != nil {
			return casErr
		}
		result = next
		return nil
	}
	var err error
	for {
		// A conflict means another writer advanced the counter between
		// the read and the CAS; read it again and retry.
		err = s.retryTransient(ctx, casOnce)
		if err == nil || !backend.IsConflict(err) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return 0, s.translateBackendErr(err)
	}
	return result, nil
}

// publish assigns seq to data and notifies the Bus. Only called after
// the corresponding write has been durably committed, per spec.md §5's
// ordering guarantee.
func (s *Store) publish(kind string, seq int64, v any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.bus.Publish(bus.Event{Seq: seq, Kind: kind, Room: s.roomID, Data: data})
}

func (s *Store) now() time.Time { return s.clock.Now() }

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshal[T any](data string, out *T) error {
	return json.Unmarshal([]byte(data), out)
}
