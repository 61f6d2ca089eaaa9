package room

import (
	"context"
	"time"

	"github.com/masc-dev/masc/internal/backend"
)

// CacheSet stores a room-scoped value with an optional TTL; ttl of
// zero means the entry never expires on its own.
func (s *Store) CacheSet(ctx context.Context, key, value string, ttl time.Duration, tags []string) (*CacheEntry, error) {
	if key == "" {
		return nil, New(KindInvalidArgument, "key is required")
	}
	e := &CacheEntry{
		Key:       key,
		Value:     value,
		CreatedAt: s.now(),
		Tags:      tags,
	}
	if ttl > 0 {
		exp := s.now().Add(ttl)
		e.ExpiresAt = &exp
	}

	sealed := *e
	sealedVal, err := s.box.Seal(e.Value)
	if err != nil {
		return nil, New(KindInternal, err.Error())
	}
	sealed.Value = sealedVal

	if err := s.putCacheEntry(ctx, &sealed); err != nil {
		return nil, err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("cache_set", seq, map[string]string{"key": key})
	}
	return e, nil
}

// CacheGet returns the entry if present and not expired. An expired
// entry is lazily deleted and reported as not_found.
func (s *Store) CacheGet(ctx context.Context, key string) (*CacheEntry, error) {
	raw, err := s.backend.Get(ctx, s.cacheKey(key))
	if err != nil {
		if backend.IsNotFound(err) {
			return nil, New(KindNotFound, "cache key not found")
		}
		return nil, s.translateBackendErr(err)
	}
	var e CacheEntry
	if err := unmarshal(raw, &e); err != nil {
		return nil, New(KindInternal, "corrupt cache record: "+err.Error())
	}

	if e.ExpiresAt != nil && !e.ExpiresAt.After(s.now()) {
		_ = s.backend.Delete(ctx, s.cacheKey(key))
		return nil, New(KindNotFound, "cache key has expired")
	}

	opened, err := s.box.Open(e.Value)
	if err != nil {
		return nil, New(KindInternal, err.Error())
	}
	e.Value = opened
	return &e, nil
}

// CacheDelete removes a cache entry. Deleting an absent key is not an
// error.
func (s *Store) CacheDelete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, s.cacheKey(key)); err != nil && !backend.IsNotFound(err) {
		return s.translateBackendErr(err)
	}
	return nil
}

// CacheList returns every non-expired entry, decrypted, optionally
// filtered to those carrying tag.
func (s *Store) CacheList(ctx context.Context, tag string) ([]*CacheEntry, error) {
	keys, err := s.backend.List(ctx, s.prefix()+"/cache/")
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	now := s.now()
	out := make([]*CacheEntry, 0, len(keys))
	for _, k := range keys {
		raw, gerr := s.backend.Get(ctx, k)
		if gerr != nil {
			continue
		}
		var e CacheEntry
		if unmarshal(raw, &e) != nil {
			continue
		}
		if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
			_ = s.backend.Delete(ctx, k)
			continue
		}
		if tag != "" && !hasTag(e.Tags, tag) {
			continue
		}
		opened, oerr := s.box.Open(e.Value)
		if oerr != nil {
			continue
		}
		e.Value = opened
		out = append(out, &e)
	}
	return out, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (s *Store) putCacheEntry(ctx context.Context, e *CacheEntry) error {
	data, err := marshal(e)
	if err != nil {
		return New(KindInternal, err.Error())
	}
	if err := s.backend.Set(ctx, s.cacheKey(e.Key), data); err != nil {
		return s.translateBackendErr(err)
	}
	return nil
}
