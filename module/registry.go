package module

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lbbs-go/lbbsd/framework/log"
)

// Registry is the process-wide collection of known modules keyed by
// canonical name. Its own lock guards only the name -> record table and
// the deferred-reload queue; it is never held across a module entrypoint
// call or a backend open/close (see Coordinator).
//
// A Registry is an explicit, constructible value rather than a true
// global so tests can run several in isolation. DefaultRegistry exists
// only as the well-known instance a real plugin's constructor reaches
// through the package-level Register/Unregister functions, mirroring
// framework/log's DefaultLogger convention.
type Registry struct {
	log log.Logger

	mu      sync.Mutex
	records map[string]*Record
	backend *Backend

	deferredReloadQueue []string
}

// NewRegistry creates an empty registry. backend may be nil for tests
// that only exercise statically-registered records (RegisterStatic).
func NewRegistry(logger log.Logger, backend *Backend) *Registry {
	return &Registry{
		log:     logger,
		records: make(map[string]*Record),
		backend: backend,
	}
}

// DefaultRegistry is the instance real plugin constructors register
// against, populated by cmd/lbbsd's main before any module is opened.
var DefaultRegistry *Registry

// Register is the constructor-side entry point: a module's own init()
// calls this (indirectly, through whatever thin wrapper it links
// against) to publish its Descriptor to DefaultRegistry.
func Register(desc Descriptor) (*Handle, error) {
	if DefaultRegistry == nil {
		return nil, errInternal(desc.Name, "no default registry configured")
	}
	return DefaultRegistry.register(desc)
}

// Unregister mirrors Register for a module's destructor.
func Unregister(name string) error {
	if DefaultRegistry == nil {
		return errInternal(name, "no default registry configured")
	}
	return DefaultRegistry.unregister(name)
}

func canonicalName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if ext := platformExt(); ext != "" && strings.HasSuffix(name, ext) {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// beginOpen creates (or reuses, if present and terminal) the record for
// name and marks it StateOpening, ready for the backend to open the
// shared object that should call back into register.
//
// It never blocks on module code; callers hold no other lock across
// this call and the subsequent Backend.Open.
func (r *Registry) beginOpen(name string) (*Record, error) {
	name = canonicalName(name)
	if name == "" {
		return nil, errInvalidName(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if ok {
		rec.mu.Lock()
		state := rec.state
		rec.mu.Unlock()
		if !state.terminal() {
			return rec, errAlreadyLoaded(name)
		}
	} else {
		rec = &Record{name: name, requiredBy: make(map[*Record]int)}
		r.records[name] = rec
	}

	rec.mu.Lock()
	rec.state = StateOpening
	rec.hasBack = false
	rec.mu.Unlock()

	return rec, nil
}

// register attaches desc to the record the backend most recently began
// opening, matching by canonical name, and transitions it to
// StateRegistered. It fails if no open is in flight for this name or if
// a distinct, already-live record holds the name (the uniqueness check
// the specification requires beyond the beginOpen reuse-when-terminal
// path, since a constructor may race a fresh beginOpen for the same
// name from a second caller).
func (r *Registry) register(desc Descriptor) (*Handle, error) {
	name := canonicalName(desc.Name)
	if name == "" {
		return nil, errInvalidName(desc.Name)
	}

	r.mu.Lock()
	var opening *Record
	if r.backend != nil {
		opening = r.backend.currentlyOpening()
	}
	if opening == nil || opening.name != name {
		r.mu.Unlock()
		return nil, newErr(KindInternal, name, "register called with no matching open in progress", nil)
	}
	r.mu.Unlock()

	opening.mu.Lock()
	defer opening.mu.Unlock()

	if opening.state != StateOpening {
		return nil, errStateConflict(name, opening.state)
	}

	opening.desc = desc
	opening.selfToken = uuid.New()
	opening.state = StateRegistered

	r.log.DebugMsg("module registered", "module", name)

	return &Handle{token: opening.selfToken, record: opening}, nil
}

// RegisterStatic registers a module that has no backing shared object
// (compiled directly into the binary). It skips the opening handshake
// entirely: the record starts life already StateRegistered.
func (r *Registry) RegisterStatic(desc Descriptor) (*Handle, error) {
	name := canonicalName(desc.Name)
	if name == "" {
		return nil, errInvalidName(desc.Name)
	}

	r.mu.Lock()
	if rec, ok := r.records[name]; ok {
		rec.mu.Lock()
		state := rec.state
		rec.mu.Unlock()
		if !state.terminal() {
			r.mu.Unlock()
			return nil, errAlreadyLoaded(name)
		}
	}
	rec := &Record{name: name, requiredBy: make(map[*Record]int)}
	r.records[name] = rec
	r.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.desc = desc
	rec.selfToken = uuid.New()
	rec.state = StateRegistered
	rec.static = true

	return &Handle{token: rec.selfToken, record: rec}, nil
}

// unregister runs from a module's destructor; valid only when the
// record is registered, unloaded or failed.
func (r *Registry) unregister(name string) error {
	name = canonicalName(name)

	r.mu.Lock()
	rec, ok := r.records[name]
	r.mu.Unlock()
	if !ok {
		return errNotFound(name)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	switch rec.state {
	case StateRegistered, StateUnloaded, StateFailed:
		rec.desc = Descriptor{}
		return nil
	default:
		return errStateConflict(name, rec.state)
	}
}

// lookup returns the live record for name, or nil.
func (r *Registry) lookup(name string) *Record {
	name = canonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[name]
}

// ref increments refcount; fails unless the record is loaded or
// registered (a module may be ref'd while still mid-load by its own
// requires chain).
func (r *Registry) ref(rec *Record) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state != StateLoaded && rec.state != StateRegistered {
		return errStateConflict(rec.name, rec.state)
	}
	rec.refcount++
	return nil
}

// unref decrements refcount; if it reaches zero and a deferred reload
// is pending, the name is enqueued for the drainer while still holding
// the record's transition lock, closing the lost-wakeup window the
// specification calls out.
func (r *Registry) unref(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.refcount > 0 {
		rec.refcount--
	}
	if rec.refcount == 0 && rec.deferredReload {
		r.enqueueDeferredReload(rec.name)
	}
}

// enqueueDeferredReload appends name to the queue unless it is already
// there. Callers hold r.mu.
func (r *Registry) enqueueDeferredReload(name string) {
	for _, n := range r.deferredReloadQueue {
		if n == name {
			return
		}
	}
	r.deferredReloadQueue = append(r.deferredReloadQueue, name)
}

// drainOne pops one name from the deferred-reload queue, or "", false
// if empty.
func (r *Registry) drainOne() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.deferredReloadQueue) == 0 {
		return "", false
	}
	name := r.deferredReloadQueue[0]
	r.deferredReloadQueue = r.deferredReloadQueue[1:]
	return name, true
}

// list emits a snapshot of every known record, in canonical-name order.
func (r *Registry) list() []Info {
	r.mu.Lock()
	recs := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.Unlock()

	sortRecordsByName(recs)

	out := make([]Info, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.snapshot())
		rec.mu.Unlock()
	}
	return out
}

// purge removes a terminal record from the table entirely, e.g. after a
// failed autoload entry is reported. It is a no-op if the record is not
// terminal or has live requiredBy edges.
func (r *Registry) purge(rec *Record) {
	rec.mu.Lock()
	terminal := rec.state.terminal() && rec.refcount == 0 && len(rec.requiredBy) == 0 && !rec.static
	name := rec.name
	rec.mu.Unlock()
	if !terminal {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.records[name]; ok && cur == rec {
		delete(r.records, name)
	}
}

func sortRecordsByName(recs []*Record) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j-1].name > recs[j].name; j-- {
			recs[j-1], recs[j] = recs[j], recs[j-1]
		}
	}
}
