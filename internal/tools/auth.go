// Category "auth" manages the bearer-token registry (internal/authn)
// that gates every other tool call when auth is enabled (spec.md §4.3
// step 2). Wiring to a concrete *authn.Registry happens through
// WireAuth, since tool handlers only receive a *room.Store.
package tools

import (
	"context"
	"sync"

	"github.com/masc-dev/masc/internal/authn"
	"github.com/masc-dev/masc/internal/room"
)

var (
	authMu       sync.RWMutex
	authRegistry *authn.Registry
)

// WireAuth associates the process-wide bearer-token registry with the
// auth tool category. Called once at startup by cmd/mascd.
func WireAuth(reg *authn.Registry) {
	authMu.Lock()
	defer authMu.Unlock()
	authRegistry = reg
}

func currentAuthRegistry() *authn.Registry {
	authMu.RLock()
	defer authMu.RUnlock()
	return authRegistry
}

func registerAuthTools(r *Registry) {
	r.Register(Tool{
		Name:        "masc_auth_add_token",
		Category:    CategoryAuth,
		Description: "Register a new bearer token under a name.",
		Schema:      schema(`{"type":"object","properties":{"name":{"type":"string"},"token":{"type":"string"}},"required":["name","token"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			reg := currentAuthRegistry()
			if reg == nil {
				return nil, room.New(room.KindInternal, "auth registry not configured")
			}
			name, err := stringArg(args, "name")
			if err != nil {
				return nil, err
			}
			token, err := stringArg(args, "token")
			if err != nil {
				return nil, err
			}
			if err := reg.Add(name, token); err != nil {
				return nil, room.New(room.KindInternal, err.Error())
			}
			return struct {
				Name string `json:"name"`
			}{name}, nil
		},
	})

	r.Register(Tool{
		Name:        "masc_auth_revoke_token",
		Category:    CategoryAuth,
		Description: "Revoke a previously registered bearer token by name.",
		Schema:      schema(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			reg := currentAuthRegistry()
			if reg == nil {
				return nil, room.New(room.KindInternal, "auth registry not configured")
			}
			name, err := stringArg(args, "name")
			if err != nil {
				return nil, err
			}
			reg.Revoke(name)
			return struct {
				Name    string `json:"name"`
				Revoked bool   `json:"revoked"`
			}{name, true}, nil
		},
	})
}
