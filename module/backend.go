package module

import (
	"path/filepath"
	"sync"
)

// Backend is the Dynamic Loader Backend: it turns a canonical module name
// into a backing handle by opening the shared object that implements it,
// and later releases that handle.
//
// Opening a module is expected to run the shared object's constructors as
// a side effect (Go: the package's init() functions run when the plugin's
// package is initialized by plugin.Open). Those constructors are the only
// registration path - the backend never resolves a descriptor symbol by
// name.
//
// Open serializes across the whole backend: only one shared object is
// opened at a time. This mirrors a real dlopen()'s process-wide lock in
// most libc implementations, and lets the backend identify "the record
// currently being opened" without goroutine-local storage - it is simply
// the one Open call in flight.
type Backend struct {
	dir string

	mu      sync.Mutex
	opening *Record // valid only while mu is held and an Open is in flight
}

// NewBackend creates a backend that resolves modules from dir using the
// platform's shared object extension.
func NewBackend(dir string) *Backend {
	return &Backend{dir: dir}
}

// BackendError distinguishes the four failure modes the Coordinator needs
// to react to differently (constructor-failed leaves a partial record
// behind; the others never started opening).
type BackendError struct {
	Kind   ErrorKind
	Path   string
	Cause  error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + " (" + e.Path + "): " + e.Cause.Error()
	}
	return string(e.Kind) + " (" + e.Path + ")"
}

func (e *BackendError) Unwrap() error { return e.Cause }

// Open resolves name to a path under the backend's module directory,
// opens it, and returns the resulting backing handle. During the call,
// the shared object's constructors are expected to call back into
// Registry.register (through module.Register) for exactly the record
// passed in rec.
func (b *Backend) Open(rec *Record, flags Flags) (interface{}, error) {
	path := filepath.Join(b.dir, rec.name+platformExt())

	b.mu.Lock()
	b.opening = rec
	defer func() {
		b.opening = nil
		b.mu.Unlock()
	}()

	return openShared(path, flags)
}

// Close releases a backing handle previously returned by Open, running
// the shared object's destructors first (the module's own Unload
// entrypoint must have already run and returned by this point, per the
// happens-before contract in the coordinator).
func (b *Backend) Close(backing interface{}) error {
	return closeShared(backing)
}

// currentlyOpening returns the record the backend most recently started
// opening, for the Registry's register() to match a constructor's
// self-declared name against. It is nil unless called from inside an
// Open call the module's own constructor triggered.
func (b *Backend) currentlyOpening() *Record {
	return b.opening
}
