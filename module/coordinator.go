package module

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/lbbs-go/lbbsd/atomicbool"
	"github.com/lbbs-go/lbbsd/framework/future"
	"github.com/lbbs-go/lbbsd/framework/log"
)

// Coordinator is the Lifecycle Coordinator: the state machine driving
// load/reload/unload, dependency traversal and the deferred-reload
// queue. It is the only component that calls into a module's
// entrypoints. The Registry sets the opening/registered states during
// registration, and the Autoload Orchestrator force-fails leftovers at
// shutdown; every other state change happens here.
type Coordinator struct {
	registry *Registry
	backend  *Backend
	deps     *DependencyTracker
	log      log.Logger

	loads singleflight.Group // joins concurrent Load(name) callers

	mu      sync.Mutex
	waitFor map[string]string // requester canonical name -> name it is blocked requiring

	seq uint64 // monotonic, assigned on entering StateLoaded; breaks unload ties

	// shuttingDown is read by every LoadWithFlags call without taking any
	// lock, so it is a lock-free flag rather than a plain bool guarded by
	// c.mu: checking it must never contend with the registry/dependency
	// traversal a concurrent Require might be doing.
	shuttingDown atomicbool.AtomicBool
}

func NewCoordinator(registry *Registry, backend *Backend, logger log.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		backend:  backend,
		deps:     &DependencyTracker{},
		log:      logger,
		waitFor:  make(map[string]string),
	}
}

func (c *Coordinator) nextSeq() uint64 { return atomic.AddUint64(&c.seq, 1) }

// DefaultCoordinator is the coordinator real modules reach through the
// package-level Require/Unrequire functions, mirroring DefaultRegistry.
var DefaultCoordinator *Coordinator

// Require is the entry point a module's load/unload entrypoint calls,
// through whatever thin wrapper it links against, to pin another
// module by name for the duration of its own life.
func Require(self *Handle, depName string) (*Reference, error) {
	if DefaultCoordinator == nil {
		return nil, errInternal(depName, "no default coordinator configured")
	}
	return DefaultCoordinator.Require(self, depName)
}

// Unrequire mirrors Require for the matching unload entrypoint.
func Unrequire(self *Handle, ref *Reference) error {
	if DefaultCoordinator == nil {
		return errInternal("", "no default coordinator configured")
	}
	return DefaultCoordinator.Unrequire(self, ref)
}

// Load loads name with no special flags. See LoadWithFlags.
func (c *Coordinator) Load(name string) (Info, error) {
	return c.LoadWithFlags(name, 0)
}

// LoadWithFlags is the "load <name>" console operation and the
// transitive load path Require uses. Concurrent calls for the same
// canonical name join a single in-flight attempt via singleflight; the
// joiners all observe the same result.
func (c *Coordinator) LoadWithFlags(name string, flags Flags) (Info, error) {
	canon := canonicalName(name)
	if canon == "" {
		return Info{}, errInvalidName(name)
	}
	// Refusing only unknown names lets the deferred-reload drain (which
	// reloads records already in the registry) keep working right up to
	// shutdown, while a stray Require of something never loaded before
	// still gets turned away instead of racing UnloadAll.
	if c.shuttingDown.IsSet() && c.registry.lookup(canon) == nil {
		return Info{}, newErr(KindInternal, canon, "coordinator is shutting down", nil)
	}

	v, err, _ := c.loads.Do(canon, func() (interface{}, error) {
		return c.loadOne(canon, flags)
	})
	if err != nil {
		return Info{}, err
	}
	return v.(*Record).snapshotLocked(), nil
}

func (r *Record) snapshotLocked() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (c *Coordinator) loadOne(name string, flags Flags) (*Record, error) {
	if rec := c.registry.lookup(name); rec != nil {
		rec.mu.Lock()
		state, static := rec.state, rec.static
		rec.mu.Unlock()

		if static {
			if state == StateLoaded {
				return rec, nil
			}
			// A static module registers exactly once, at program start;
			// there is no shared object to reopen, so unloaded/failed
			// just means "not currently running its load entrypoint".
			rec.mu.Lock()
			rec.state = StateRegistered
			rec.mu.Unlock()
			return c.runLoadEntrypoint(rec, flags)
		}
		if !state.terminal() {
			return nil, errAlreadyLoaded(name)
		}
	}

	rec, err := c.registry.beginOpen(name)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Kind == KindAlreadyLoaded {
			rec.mu.Lock()
			state := rec.state
			rec.mu.Unlock()
			if state == StateLoaded {
				return rec, nil
			}
		}
		return nil, err
	}

	backing, openErr := c.backend.Open(rec, flags)
	if openErr != nil {
		rec.mu.Lock()
		rec.state = StateFailed
		rec.mu.Unlock()
		return nil, errLoadFailed(name, openErr)
	}

	rec.mu.Lock()
	if rec.state != StateRegistered {
		state := rec.state
		rec.mu.Unlock()
		_ = c.backend.Close(backing)
		c.markFailed(rec)
		return nil, newErr(KindLoadFailed, name, fmt.Sprintf("constructor never registered (state=%s)", state), nil)
	}
	rec.backing = backing
	rec.hasBack = true
	rec.mu.Unlock()

	return c.runLoadEntrypoint(rec, flags)
}

// runLoadEntrypoint invokes rec's Load callable (if any) and drives the
// registered -> loaded/failed transition. Shared by the dynamic
// (backend-backed) and static registration paths.
func (c *Coordinator) runLoadEntrypoint(rec *Record, flags Flags) (*Record, error) {
	rec.mu.Lock()
	rec.flags = flags
	loadFn := rec.desc.Entrypoints.Load
	handle := &Handle{token: rec.selfToken, record: rec}
	hasBack := rec.hasBack
	backing := rec.backing
	name := rec.name
	rec.mu.Unlock()

	if loadFn != nil {
		if err := loadFn(handle); err != nil {
			c.markFailed(rec)
			if hasBack {
				_ = c.backend.Close(backing)
			}
			return nil, errLoadFailed(name, err)
		}
	}

	rec.mu.Lock()
	rec.state = StateLoaded
	rec.loadSeq = c.nextSeq()
	refcount := rec.refcount
	rec.mu.Unlock()
	observeTransition(rec, StateLoaded, refcount)

	return rec, nil
}

func (c *Coordinator) markFailed(rec *Record) {
	rec.mu.Lock()
	rec.state = StateFailed
	refcount := rec.refcount
	rec.mu.Unlock()
	observeTransition(rec, StateFailed, refcount)
}

// Unload is the "unload <name>" console operation.
func (c *Coordinator) Unload(name string) (Info, error) {
	rec := c.registry.lookup(name)
	if rec == nil {
		return Info{}, errNotFound(canonicalName(name))
	}
	return c.unloadRecord(rec)
}

func (c *Coordinator) unloadRecord(rec *Record) (Info, error) {
	rec.mu.Lock()
	if rec.state != StateLoaded {
		state := rec.state
		rec.mu.Unlock()
		return Info{}, errStateConflict(rec.name, state)
	}
	if len(rec.requiredBy) > 0 {
		names := make([]string, 0, len(rec.requiredBy))
		for dep := range rec.requiredBy {
			names = append(names, dep.name)
		}
		sort.Strings(names)
		rec.mu.Unlock()
		return Info{}, errUnloadRefused(rec.name, "required by "+strings.Join(names, ", "))
	}
	if rec.refcount > 0 {
		rec.mu.Unlock()
		return Info{}, errUnloadRefused(rec.name, "refcount > 0")
	}

	rec.state = StateUnloading
	unloadFn := rec.desc.Entrypoints.Unload
	handle := &Handle{token: rec.selfToken, record: rec}
	backing := rec.backing
	hasBack := rec.hasBack
	name := rec.name
	rec.mu.Unlock()

	var unloadErr error
	if unloadFn != nil {
		unloadErr = unloadFn(handle)
	}

	for _, dep := range c.deps.releaseAllReverse(rec) {
		c.registry.unref(dep)
	}

	if unloadErr != nil {
		c.markFailed(rec)
		return Info{}, errUnloadFailed(name, unloadErr)
	}

	var closeErr error
	if hasBack {
		closeErr = c.backend.Close(backing)
	}

	rec.mu.Lock()
	rec.state = StateUnloaded
	rec.hasBack = false
	rec.backing = nil
	rec.deferredReload = false
	info := rec.snapshot()
	rec.mu.Unlock()
	observeTransition(rec, StateUnloaded, info.RefCount)

	c.registry.purge(rec)

	if closeErr != nil {
		return info, errUnloadFailed(name, closeErr)
	}
	return info, nil
}

// Reload is the "reload <name> [--queue]" console operation. queue
// corresponds to try_delayed: true. When the module publishes its own
// Reload entrypoint, that callable runs in place; otherwise reload
// falls back to unload-then-load, per Entrypoints' documented contract.
func (c *Coordinator) Reload(name string, queue bool) (Info, error) {
	rec := c.registry.lookup(name)
	if rec == nil {
		return Info{}, errNotFound(canonicalName(name))
	}

	rec.mu.Lock()
	if rec.state != StateLoaded {
		state := rec.state
		rec.mu.Unlock()
		return Info{}, errStateConflict(rec.name, state)
	}
	if rec.refcount > 0 {
		if queue {
			if !rec.deferredReload || rec.reloadDone == nil {
				rec.reloadDone = future.New()
			}
			rec.deferredReload = true
			rec.mu.Unlock()
			return Info{}, newErr(KindReloadQueued, rec.name, "", nil)
		}
		rec.mu.Unlock()
		return Info{}, errReloadRefused(rec.name, "busy")
	}
	reloadFn := rec.desc.Entrypoints.Reload
	flags := rec.flags
	canon := rec.name
	rec.mu.Unlock()

	if reloadFn != nil {
		return c.runReloadEntrypoint(rec, reloadFn)
	}

	if _, err := c.unloadRecord(rec); err != nil {
		return Info{}, err
	}
	return c.LoadWithFlags(canon, flags)
}

// runReloadEntrypoint calls a module's own Reload callable in place: the
// record never leaves StateLoaded, unlike the unload-then-load fallback.
func (c *Coordinator) runReloadEntrypoint(rec *Record, reloadFn func(self *Handle) error) (Info, error) {
	rec.mu.Lock()
	handle := &Handle{token: rec.selfToken, record: rec}
	name := rec.name
	rec.mu.Unlock()

	if err := reloadFn(handle); err != nil {
		c.markFailed(rec)
		return Info{}, errLoadFailed(name, err)
	}

	rec.mu.Lock()
	rec.deferredReload = false
	info := rec.snapshot()
	rec.mu.Unlock()
	observeTransition(rec, StateLoaded, info.RefCount)
	return info, nil
}

// Require is called by a module, using its own Handle, from within its
// load or unload entrypoint to pin another module for the duration of
// its own life.
func (c *Coordinator) Require(self *Handle, depName string) (*Reference, error) {
	if self == nil || !self.valid() {
		return nil, errInternal(depName, "invalid self handle")
	}
	dependent := self.record
	canon := canonicalName(depName)
	if canon == "" {
		return nil, errInvalidName(depName)
	}
	if canon == dependent.name {
		return nil, errWouldCycle(canon, dependent.name)
	}

	if existing := c.registry.lookup(canon); existing != nil {
		if c.deps.reachable(existing, dependent) {
			return nil, errWouldCycle(canon, dependent.name)
		}
	}

	if err := c.enterWait(dependent.name, canon); err != nil {
		return nil, err
	}
	defer c.exitWait(dependent.name)

	rec := c.registry.lookup(canon)
	if rec == nil || !c.isLoaded(rec) {
		if _, err := c.Load(canon); err != nil {
			return nil, errLoadFailed(canon, err)
		}
		rec = c.registry.lookup(canon)
		if rec == nil {
			return nil, errInternal(canon, "load succeeded but record vanished")
		}
	}

	if err := c.registry.ref(rec); err != nil {
		return nil, err
	}
	c.deps.addEdge(dependent, rec)

	return &Reference{dependency: rec}, nil
}

// Unrequire releases a Reference obtained from Require. It must be
// called from the same module's unload entrypoint.
func (c *Coordinator) Unrequire(self *Handle, ref *Reference) error {
	if self == nil || !self.valid() {
		return errInternal("", "invalid self handle")
	}
	if ref == nil || ref.dependency == nil {
		return errInternal(self.Name(), "nil reference")
	}
	c.deps.removeEdge(self.record, ref.dependency)
	c.registry.unref(ref.dependency)
	return nil
}

func (c *Coordinator) isLoaded(rec *Record) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.state == StateLoaded
}

// enterWait records that requester is now blocked requiring target, and
// refuses if target is (transitively) already waiting on requester -
// the bounded transitive-autoload cycle check for chains that have not
// yet produced a requires edge in the dependency graph.
func (c *Coordinator) enterWait(requester, target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for cur, ok := target, true; ok; cur, ok = c.waitFor[cur] {
		if cur == requester {
			return errWouldCycle(target, requester)
		}
	}
	c.waitFor[requester] = target
	return nil
}

func (c *Coordinator) exitWait(requester string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waitFor, requester)
}

// BeginShutdown marks the coordinator as shutting down: subsequent Load
// calls (direct or via Require) for a name that has no record in the
// registry are refused rather than racing the unload sweep to bring up a
// module that is about to be torn down anyway. Names the registry still
// holds a record for can still be loaded and reloaded, so the
// deferred-reload drain keeps working. Already-loaded modules are
// unaffected; call this immediately before draining deferred reloads and
// running UnloadAll.
func (c *Coordinator) BeginShutdown() {
	c.shuttingDown.Set(true)
}

// List is the "modules" console operation.
func (c *Coordinator) List() []Info {
	return c.registry.list()
}

// DrainDeferred retries every reload queued by a prior Reload(name,
// queue=true) whose refcount has since reached zero. It is invoked
// between top-level operations and at shutdown entry, per the
// specification's ordering guarantee that a refcount-to-zero unref
// happens-before drain observation.
func (c *Coordinator) DrainDeferred() {
	for {
		name, ok := c.registry.drainOne()
		if !ok {
			return
		}

		var done *future.Future
		if rec := c.registry.lookup(name); rec != nil {
			rec.mu.Lock()
			done = rec.reloadDone
			rec.mu.Unlock()
		}

		info, err := c.Reload(name, false)
		if err != nil {
			c.log.Error("deferred reload failed", err, "module", name)
			if rec := c.registry.lookup(name); rec != nil {
				rec.mu.Lock()
				rec.state = StateFailed
				rec.deferredReload = false
				rec.mu.Unlock()
			}
		}
		if done != nil {
			done.Set(info, err)
		}
	}
}

// WaitReload blocks until the deferred reload most recently queued for
// name (via Reload(name, true)) has been drained, or ctx is done, and
// returns that reload's outcome. If the drain has already run, the
// outcome is returned at once. It returns immediately with an error if no
// reload has been queued for name's current record.
func (c *Coordinator) WaitReload(ctx context.Context, name string) (Info, error) {
	rec := c.registry.lookup(name)
	if rec == nil {
		return Info{}, errNotFound(canonicalName(name))
	}
	rec.mu.Lock()
	done := rec.reloadDone
	rec.mu.Unlock()
	if done == nil {
		return Info{}, newErr(KindInternal, rec.name, "no reload is queued", nil)
	}
	val, err := done.GetContext(ctx)
	if err != nil {
		return Info{}, err
	}
	return val.(Info), nil
}
