package module

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lbbs-go/lbbsd/framework/future"
)

// Record is the loader's per-module bookkeeping: everything the Registry,
// Coordinator and DependencyTracker need to know about one named module.
//
// Fields are partitioned by which lock guards them:
//   - name, registry membership: the Registry's lock (short-lived only).
//   - state, refcount, backing, deferredReload, loadSeq: the record's own
//     transition lock, taken for each read or update of these fields and
//     released before any module entrypoint or backend call.
//   - requires / requiredBy: the DependencyTracker's lock, ordered after
//     the registry lock and before any record's transition lock.
type Record struct {
	mu sync.Mutex // transition lock

	name string
	desc Descriptor

	backing interface{} // opaque backing handle from the Dynamic Loader Backend
	hasBack bool
	flags   Flags // flags the record was last opened with, reused by reload
	static  bool  // true if registered via Registry.RegisterStatic (no backend involved)

	state    State
	refcount int

	selfToken uuid.UUID

	deferredReload bool

	// reloadDone is the Future of the most recently queued deferred
	// reload. While deferredReload is true, every concurrent
	// Reload(name, queue=true) caller for the same busy record joins this
	// one Future instead of queuing a reload each, and is released with
	// the eventual DrainDeferred outcome. It stays set, resolved, after
	// the drain until the next reload is queued.
	reloadDone *future.Future

	// requires/requiredBy are mutated only under DependencyTracker.mu.
	requires   []*Record          // order matters: released in reverse
	requiredBy map[*Record]int    // dependent -> number of live edges

	loadSeq uint64 // set when entering StateLoaded; breaks unload ties
}

// Info is the read-only snapshot List/Lookup callers get back; it never
// aliases the Record so callers cannot bypass the transition lock.
type Info struct {
	Name        string
	Description string
	State       State
	RefCount    int
	RequiredBy  []string
}

func (r *Record) snapshot() Info {
	reqBy := make([]string, 0, len(r.requiredBy))
	for dep := range r.requiredBy {
		reqBy = append(reqBy, dep.name)
	}
	return Info{
		Name:        r.name,
		Description: r.desc.Description,
		State:       r.state,
		RefCount:    r.refcount,
		RequiredBy:  reqBy,
	}
}
