package module

import (
	"fmt"
)

// ErrorKind identifies one of the error categories the Lifecycle
// Coordinator surfaces to callers.
type ErrorKind string

const (
	KindNotFound       ErrorKind = "not-found"
	KindAlreadyLoaded  ErrorKind = "already-loaded"
	KindLoadFailed     ErrorKind = "load-failed"
	KindUnloadFailed   ErrorKind = "unload-failed"
	KindUnloadRefused  ErrorKind = "unload-refused"
	KindReloadQueued   ErrorKind = "reload-queued"
	KindReloadRefused  ErrorKind = "reload-refused"
	KindWouldCycle     ErrorKind = "would-cycle"
	KindInvalidName    ErrorKind = "invalid-name"
	KindStateConflict  ErrorKind = "state-conflict"
	KindInternal       ErrorKind = "internal"
	KindMalformed      ErrorKind = "malformed"
	KindSymbolMissing  ErrorKind = "symbol-missing"
	KindConstructorErr ErrorKind = "constructor-failed"
)

// Error is the structured error type returned by Coordinator, Registry and
// DependencyTracker operations. It implements the same Fields() contract
// as framework/exterrors so log.Logger.Error renders it with structured
// key-value context.
type Error struct {
	Kind   ErrorKind
	Name   string
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Name != "" {
		msg += " (" + e.Name + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Fields() map[string]interface{} {
	f := map[string]interface{}{
		"kind": string(e.Kind),
	}
	if e.Name != "" {
		f["module"] = e.Name
	}
	if e.Reason != "" {
		f["reason"] = e.Reason
	}
	return f
}

// Is allows errors.Is(err, &Error{Kind: KindNotFound}) style checks that
// only compare the Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind ErrorKind, name, reason string, cause error) *Error {
	return &Error{Kind: kind, Name: name, Reason: reason, Cause: cause}
}

func errNotFound(name string) error {
	return newErr(KindNotFound, name, "no such module", nil)
}

func errInvalidName(name string) error {
	return newErr(KindInvalidName, name, "empty or malformed module name", nil)
}

func errAlreadyLoaded(name string) error {
	return newErr(KindAlreadyLoaded, name, "", nil)
}

func errLoadFailed(name string, cause error) error {
	return newErr(KindLoadFailed, name, "", cause)
}

func errUnloadFailed(name string, cause error) error {
	return newErr(KindUnloadFailed, name, "", cause)
}

func errUnloadRefused(name, reason string) error {
	return newErr(KindUnloadRefused, name, reason, nil)
}

func errReloadRefused(name, reason string) error {
	return newErr(KindReloadRefused, name, reason, nil)
}

func errWouldCycle(name, via string) error {
	return newErr(KindWouldCycle, name, fmt.Sprintf("would close a cycle through %s", via), nil)
}

func errStateConflict(name string, got State) error {
	return newErr(KindStateConflict, name, fmt.Sprintf("unexpected state %s", got), nil)
}

func errInternal(name, reason string) error {
	return newErr(KindInternal, name, reason, nil)
}
