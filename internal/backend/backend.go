// Package backend defines the capability interface the coordination
// kernel uses to persist Room state, and the four interchangeable
// implementations (memory, fs, redis, relational) named in spec.md
// §4.1. The kernel only ever talks to this interface.
package backend

import (
	"context"
	"errors"
)

// Kind classifies a Backend error so callers can decide whether to
// retry.
type Kind int

const (
	// KindUnknown is the zero value; never returned deliberately.
	KindUnknown Kind = iota
	// KindTransient marks a retryable failure (e.g. a dropped
	// connection). Callers should retry with capped exponential
	// back-off.
	KindTransient
	// KindConflict marks a failed compare-and-swap.
	KindConflict
	// KindNotFound marks a missing key.
	KindNotFound
	// KindFatal marks a non-retryable failure.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindFatal:
		return "backend_fatal"
	default:
		return "unknown"
	}
}

// Error is the error type every Backend implementation returns.
type Error struct {
	Kind Kind
	Op   string
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Op + " " + e.Key + ": " + e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Key + ": " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs a classified Backend error.
func NewError(kind Kind, op, key string, err error) *Error {
	return &Error{Kind: kind, Op: op, Key: key, Err: err}
}

// IsNotFound reports whether err is a Backend not-found error.
func IsNotFound(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == KindNotFound
}

// IsConflict reports whether err is a Backend CAS-conflict error.
func IsConflict(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == KindConflict
}

// IsTransient reports whether err is a retryable Backend error.
func IsTransient(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == KindTransient
}

// Guard is the handle returned by Lock; callers must call Release
// exactly once, and must never acquire the same scope reentrantly —
// re-entrant locking is explicitly forbidden by spec.md §4.1.
type Guard interface {
	Release(ctx context.Context) error
}

// Backend is the capability interface the Room Store is built on:
// get/set/cas/delete/list a keyed object, append to a line-delimited
// log, and acquire an advisory per-scope lock.
type Backend interface {
	// Get returns the stored value for key, or a KindNotFound Error if
	// absent.
	Get(ctx context.Context, key string) (string, error)

	// Set unconditionally stores value under key.
	Set(ctx context.Context, key, value string) error

	// CAS atomically replaces key's value with newValue only if its
	// current value equals expected. If key is absent, expected must be
	// the empty string to mean "create if absent". Returns a
	// KindConflict Error if the current value does not match expected.
	CAS(ctx context.Context, key, expected, newValue string) error

	// Delete removes key. It is not an error if key is already absent.
	Delete(ctx context.Context, key string) error

	// List returns all keys with the given prefix, in no particular
	// order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Append atomically appends one line to logKey. Lines must not
	// contain embedded newlines; callers are responsible for encoding
	// (e.g. single-line JSON).
	Append(ctx context.Context, logKey, line string) error

	// ReadLog returns every line appended to logKey, in append order.
	ReadLog(ctx context.Context, logKey string) ([]string, error)

	// Lock acquires an advisory, non-reentrant lock on scope, blocking
	// until acquired or ctx is cancelled.
	Lock(ctx context.Context, scope string) (Guard, error)

	// Close releases any resources (connections, file handles) held by
	// the backend.
	Close() error
}
