package room

import "errors"

// Kind is the error taxonomy from spec.md §7, surfaced to JSON-RPC
// clients as data.kind.
type Kind string

const (
	KindInvalidArgument  Kind = "invalid_argument"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindForbidden        Kind = "forbidden"
	KindUnauthorized     Kind = "unauthorized"
	KindRateLimited      Kind = "rate_limited"
	KindToolDisabled     Kind = "tool_disabled"
	KindTimeout          Kind = "timeout"
	KindBackendTransient Kind = "backend_transient"
	KindBackendFatal     Kind = "backend_fatal"
	KindDrift            Kind = "drift"
	KindCancelled        Kind = "cancelled"
	KindInternal         Kind = "internal"
)

// Error is the Room Store's error type. Every public Store method
// returns either nil or an *Error so that transport code can translate
// Kind into a JSON-RPC error object uniformly.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

// New constructs an *Error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an *Error with details.
func Newf(kind Kind, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Is implements errors.Is comparison by Kind, so callers can write
// errors.Is(err, room.New(room.KindConflict, "")) style checks, or
// more idiomatically compare with the As-then-Kind pattern via KindOf.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error,
// defaulting to KindInternal otherwise.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
