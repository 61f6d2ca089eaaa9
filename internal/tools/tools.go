// Package tools is the dynamic tool registry of spec.md §9's "Dynamic
// tool set" design note: each category registers its masc_<verb>[_noun]
// tools with a JSON schema and a handler closure at RegisterAll time,
// no reflection, keyed by name. Grounded on the teacher's router
// registration shape (internal/api/router.go's route-per-resource
// style) translated from HTTP paths to JSON-RPC tool names.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/masc-dev/masc/internal/room"
	"github.com/masc-dev/masc/internal/telemetry"
)

// Category names a tool group, used by the dispatcher's mode filter
// (spec.md §4.3 step 4) to decide which tools a room exposes.
type Category string

const (
	CategoryCore       Category = "core"
	CategoryComm       Category = "comm"
	CategoryPortal     Category = "portal"
	CategoryWorktree   Category = "worktree"
	CategoryHealth     Category = "health"
	CategoryDiscovery  Category = "discovery"
	CategoryVoting     Category = "voting"
	CategoryInterrupt  Category = "interrupt"
	CategoryCost       Category = "cost"
	CategoryAuth       Category = "auth"
	CategoryRatelimit  Category = "ratelimit"
	CategoryEncryption Category = "encryption"
	CategoryCellular   Category = "cellular"
	CategoryCache      Category = "cache"
	CategoryRun        Category = "run"
	CategoryPlanning   Category = "planning"
	CategoryMitosis    Category = "mitosis"
	CategoryTempo      Category = "tempo"
	CategoryDashboard  Category = "dashboard"
	CategoryA2A        Category = "a2a"
)

// AllCategories lists every category in the order spec.md §6 names
// them, for Agent Card assembly. Registry.List does not use it, so
// tools/list order is unspecified.
var AllCategories = []Category{
	CategoryCore, CategoryComm, CategoryPortal, CategoryWorktree,
	CategoryHealth, CategoryDiscovery, CategoryVoting, CategoryInterrupt,
	CategoryCost, CategoryAuth, CategoryRatelimit, CategoryEncryption,
	CategoryCellular, CategoryCache, CategoryRun, CategoryPlanning,
	CategoryMitosis, CategoryTempo, CategoryDashboard, CategoryA2A,
}

// Handler executes one tool call against the Room Store and returns a
// JSON-serializable result. Errors should be *room.Error so the
// dispatcher can translate a Kind into the JSON-RPC error taxonomy.
type Handler func(ctx context.Context, store *room.Store, args map[string]any) (any, error)

// Tool is one registered, named tool: schema plus handler.
type Tool struct {
	Name        string
	Category    Category
	Description string
	Schema      json.RawMessage // JSON Schema for arguments

	Handler Handler

	schema *gojsonschema.Schema // compiled lazily on first Validate
}

// Validate checks args (already decoded into a map) against the
// tool's JSON schema.
func (t *Tool) Validate(args map[string]any) error {
	if t.schema == nil {
		loader := gojsonschema.NewBytesLoader(t.Schema)
		compiled, err := gojsonschema.NewSchema(loader)
		if err != nil {
			return fmt.Errorf("tools: invalid schema for %s: %w", t.Name, err)
		}
		t.schema = compiled
	}
	result, err := t.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("tools: validating %s arguments: %w", t.Name, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return room.Newf(room.KindInvalidArgument, "invalid arguments for "+t.Name, map[string]any{
			"errors": msgs,
		})
	}
	return nil
}

// Registry is the name-keyed set of every tool across every category.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry returns an empty Registry. Use Register to populate it;
// the category Register* functions in this package build a fully
// populated Registry (see RegisterAll).
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds t to the registry. Re-registering a name overwrites
// the previous entry, which is only used by tests.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tool := t
	r.tools[tool.Name] = &tool
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool, optionally filtered to the
// given set of enabled categories (nil/empty means every category).
func (r *Registry) List(enabled map[Category]bool) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if len(enabled) == 0 || enabled[t.Category] {
			out = append(out, t)
		}
	}
	return out
}

// RegisterAll builds the fully populated registry: one Register* call
// per category, matching spec.md §6's category list.
func RegisterAll() *Registry {
	r := NewRegistry()
	registerCore(r)
	registerComm(r)
	registerPortal(r)
	registerWorktree(r)
	registerHealth(r)
	registerDiscovery(r)
	registerVoting(r)
	registerInterrupt(r)
	registerCost(r)
	registerAuthTools(r)
	registerRatelimit(r)
	registerEncryption(r)
	registerCellular(r)
	registerCache(r)
	registerRun(r)
	registerPlanning(r)
	registerMitosis(r)
	registerTempo(r)
	registerDashboard(r)
	registerA2A(r)
	return r
}

// schema is a tiny helper building a JSON Schema object literal
// in-line, avoiding a struct tag dance for the handful of tools that
// need one.
func schema(s string) json.RawMessage { return json.RawMessage(s) }

// stringArg reads a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", room.New(room.KindInvalidArgument, "missing argument: "+key)
	}
	s, ok := v.(string)
	if !ok {
		return "", room.New(room.KindInvalidArgument, key+" must be a string")
	}
	return s, nil
}

// optionalStringArg reads an optional string argument, defaulting to "".
func optionalStringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// stringSliceArg reads an optional array-of-strings argument.
func stringSliceArg(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// intArg reads an optional integer (decoded from JSON, so float64)
// argument, defaulting to def.
func intArg(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return int(f)
}

// telemetryEvents reads back every telemetry event recorded for s's
// room, or an empty slice if telemetry was never configured.
func telemetryEvents(ctx context.Context, s *room.Store) ([]telemetry.Event, error) {
	rec := s.Telemetry()
	if rec == nil {
		return nil, nil
	}
	events, err := rec.Events(ctx)
	if err != nil {
		return nil, room.New(room.KindBackendTransient, err.Error())
	}
	return events, nil
}

// jsonUnmarshalRaw decodes a json.RawMessage into out, for tools/list
// rendering a tool's schema back into the JSON-RPC response.
func jsonUnmarshalRaw(raw json.RawMessage, out any) error {
	return json.Unmarshal(raw, out)
}

// secondsToDuration converts a fractional-seconds float (the wire
// representation used throughout spec.md §3) into a time.Duration.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// float64Arg reads an optional numeric argument, defaulting to def.
func float64Arg(args map[string]any, key string, def float64) float64 {
	v, ok := args[key]
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return f
}
