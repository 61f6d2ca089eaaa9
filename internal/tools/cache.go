package tools

import (
	"context"

	"github.com/masc-dev/masc/internal/room"
)

func registerCache(r *Registry) {
	r.Register(Tool{
		Name:        "masc_cache_set",
		Category:    CategoryCache,
		Description: "Set a room-scoped cache entry, with an optional TTL and tags.",
		Schema:      schema(`{"type":"object","properties":{"key":{"type":"string"},"value":{"type":"string"},"ttl_seconds":{"type":"number"},"tags":{"type":"array","items":{"type":"string"}}},"required":["key","value"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			key, err := stringArg(args, "key")
			if err != nil {
				return nil, err
			}
			value, err := stringArg(args, "value")
			if err != nil {
				return nil, err
			}
			ttl := secondsToDuration(float64Arg(args, "ttl_seconds", 0))
			return s.CacheSet(ctx, key, value, ttl, stringSliceArg(args, "tags"))
		},
	})

	r.Register(Tool{
		Name:        "masc_cache_get",
		Category:    CategoryCache,
		Description: "Read a cache entry; expired entries are lazily deleted and return not_found.",
		Schema:      schema(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			key, err := stringArg(args, "key")
			if err != nil {
				return nil, err
			}
			return s.CacheGet(ctx, key)
		},
	})

	r.Register(Tool{
		Name:        "masc_cache_delete",
		Category:    CategoryCache,
		Description: "Delete a cache entry.",
		Schema:      schema(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			key, err := stringArg(args, "key")
			if err != nil {
				return nil, err
			}
			return nil, s.CacheDelete(ctx, key)
		},
	})

	r.Register(Tool{
		Name:        "masc_cache_list",
		Category:    CategoryCache,
		Description: "List cache entries, optionally filtered by tag.",
		Schema:      schema(`{"type":"object","properties":{"tag":{"type":"string"}}}`),
		Handler: func(ctx context.Context, s *room.Store, args map[string]any) (any, error) {
			return s.CacheList(ctx, optionalStringArg(args, "tag"))
		},
	})
}
