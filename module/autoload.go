package module

import "github.com/lbbs-go/lbbsd/framework/log"

// AutoloadEntry names one module the Autoload Orchestrator should load
// at startup, in the order given.
type AutoloadEntry struct {
	Name  string
	Flags Flags
}

// AutoloadResult summarizes a LoadAll or UnloadAll pass for the caller
// (typically the console or startup logging), distinguishing a clean
// run from a partial one without forcing the caller to inspect errors.
type AutoloadResult struct {
	Loaded  []string
	Failed  map[string]error
	Skipped []string // UnloadAll only: modules force-failed instead of cleanly unloaded
}

// Partial reports whether any entry failed.
func (r AutoloadResult) Partial() bool {
	return len(r.Failed) > 0 || len(r.Skipped) > 0
}

func (r AutoloadResult) String() string {
	if r.Partial() {
		return "partially loaded"
	}
	return "fully loaded"
}

// Autoload is the Autoload Orchestrator: LoadAll at startup, UnloadAll
// at shutdown.
type Autoload struct {
	coord *Coordinator
	reg   *Registry
	log   log.Logger
}

func NewAutoload(coord *Coordinator, reg *Registry, logger log.Logger) *Autoload {
	return &Autoload{coord: coord, reg: reg, log: logger}
}

// LoadAll loads every entry in order. A failure on one entry is
// recorded and the next entry is still attempted.
func (a *Autoload) LoadAll(entries []AutoloadEntry) AutoloadResult {
	res := AutoloadResult{Failed: make(map[string]error)}
	for _, e := range entries {
		if _, err := a.coord.LoadWithFlags(e.Name, e.Flags); err != nil {
			a.log.Error("autoload failed", err, "module", e.Name)
			autoloadFailures.WithLabelValues(canonicalName(e.Name)).Inc()
			res.Failed[canonicalName(e.Name)] = err
			if rec := a.reg.lookup(e.Name); rec != nil {
				a.reg.purge(rec)
			}
			continue
		}
		res.Loaded = append(res.Loaded, canonicalName(e.Name))
	}
	return res
}

// UnloadAll repeatedly scans for loaded modules with no live dependents
// and unloads them, in reverse dependency order, until none remain.
// Any left over (only possible from a bug elsewhere, since the requires
// graph is acyclic) are force-failed for diagnostics rather than left
// dangling.
func (a *Autoload) UnloadAll() AutoloadResult {
	res := AutoloadResult{Failed: make(map[string]error)}

	for {
		progressed := false
		for _, cand := range a.readyToUnload() {
			if _, err := a.coord.unloadRecord(cand); err != nil {
				res.Failed[cand.name] = err
				continue
			}
			res.Loaded = append(res.Loaded, cand.name)
			progressed = true
		}
		if !progressed {
			break
		}
	}

	for _, info := range a.reg.list() {
		if info.State != StateLoaded {
			continue
		}
		cand := a.reg.lookup(info.Name)
		if cand == nil {
			continue
		}
		cand.mu.Lock()
		cand.state = StateFailed
		cand.mu.Unlock()
		res.Skipped = append(res.Skipped, info.Name)
	}

	return res
}

// readyToUnload returns the loaded records with no live requiredBy
// edges, sorted by loadSeq descending (most-recently-loaded first),
// the tie-break the specification requires among modules at the same
// topological level.
func (a *Autoload) readyToUnload() []*Record {
	infos := a.reg.list()
	var ready []*Record
	for _, info := range infos {
		if info.State != StateLoaded || len(info.RequiredBy) > 0 {
			continue
		}
		if rec := a.reg.lookup(info.Name); rec != nil {
			ready = append(ready, rec)
		}
	}
	for i := 1; i < len(ready); i++ {
		for j := i; j > 0 && ready[j-1].loadSeq < ready[j].loadSeq; j-- {
			ready[j-1], ready[j] = ready[j], ready[j-1]
		}
	}
	return ready
}
