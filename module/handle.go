package module

import (
	"github.com/google/uuid"
)

// Handle is the durable, opaque identifier the Registry hands a module at
// registration time for its own use (BBS_MODULE_SELF in the C ancestor of
// this design): querying its own name, issuing require/unrequire calls,
// and logging under its own identity.
//
// Handle is non-owning: it stays valid only while its Record's state is
// not StateUnloaded and its token still matches the record's self-token.
// Require and Unrequire refuse an invalid Handle with a KindInternal
// "invalid self handle" error rather than touching freed memory, since Go
// has no such thing to dangle - but the check keeps module authors from
// observing a record that has moved on to a different generation.
type Handle struct {
	token  uuid.UUID
	record *Record
}

// Token returns the self-token's unique identity, primarily useful for
// diagnostics (log correlation across reloads of the same name, where the
// Record is reused but the token is not).
func (h *Handle) Token() uuid.UUID {
	return h.token
}

// Name returns the module's canonical name.
func (h *Handle) Name() string {
	return h.record.name
}

func (h *Handle) valid() bool {
	h.record.mu.Lock()
	defer h.record.mu.Unlock()
	return h.record.selfToken == h.token && h.record.state != StateUnloaded
}
