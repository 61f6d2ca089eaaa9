package room

import (
	"context"
	"path"
	"time"

	"github.com/masc-dev/masc/internal/backend"
)

// AcquireLock CAS empty→{holder=agentID}. Fails conflict if already
// locked by a different agent. Re-lock by the same agent is idempotent
// and extends expiry. ttl of zero means indefinite, per the Open
// Question decision recorded in DESIGN.md.
func (s *Store) AcquireLock(ctx context.Context, agentID, filePath string, ttl time.Duration) (*Lock, error) {
	normalized := path.Clean(filePath)

	var result *Lock
	err := s.withLock(ctx, "locks:"+normalized, func() error {
		key := s.lockKey(normalized)
		raw, err := s.backend.Get(ctx, key)
		if err != nil && !backend.IsNotFound(err) {
			return s.translateBackendErr(err)
		}

		now := s.now()
		if raw != "" {
			var existing Lock
			if unmarshal(raw, &existing) == nil {
				if existing.Holder != agentID {
					return New(KindConflict, "file is locked by "+existing.Holder)
				}
			}
		}

		l := &Lock{FilePath: normalized, Holder: agentID, AcquiredAt: now}
		if ttl > 0 {
			exp := now.Add(ttl)
			l.ExpiresAt = &exp
		}
		data, merr := marshal(l)
		if merr != nil {
			return New(KindInternal, merr.Error())
		}
		if err := s.backend.Set(ctx, key, data); err != nil {
			return s.translateBackendErr(err)
		}
		result = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("lock_acquired", seq, result)
	}
	return result, nil
}

// ReleaseLock removes a lock only if holder matches; otherwise
// forbidden.
func (s *Store) ReleaseLock(ctx context.Context, agentID, filePath string) error {
	normalized := path.Clean(filePath)
	var released *Lock
	err := s.withLock(ctx, "locks:"+normalized, func() error {
		key := s.lockKey(normalized)
		raw, err := s.backend.Get(ctx, key)
		if err != nil {
			if backend.IsNotFound(err) {
				return New(KindNotFound, "lock not held")
			}
			return s.translateBackendErr(err)
		}
		var l Lock
		if unmarshal(raw, &l) != nil {
			return New(KindInternal, "corrupt lock record")
		}
		if l.Holder != agentID {
			return New(KindForbidden, "lock is held by "+l.Holder)
		}
		if err := s.backend.Delete(ctx, key); err != nil {
			return s.translateBackendErr(err)
		}
		released = &l
		return nil
	})
	if err != nil {
		return err
	}
	seq, serr := s.nextSeq(ctx)
	if serr == nil {
		s.publish("lock_released", seq, released)
	}
	return nil
}

// Locks returns a snapshot of every currently-held lock.
func (s *Store) Locks(ctx context.Context) ([]*Lock, error) {
	keys, err := s.backend.List(ctx, s.prefix()+"/locks/")
	if err != nil {
		return nil, s.translateBackendErr(err)
	}
	out := make([]*Lock, 0, len(keys))
	for _, k := range keys {
		raw, gerr := s.backend.Get(ctx, k)
		if gerr != nil {
			continue
		}
		var l Lock
		if unmarshal(raw, &l) != nil {
			continue
		}
		out = append(out, &l)
	}
	return out, nil
}
