package module

import "sync"

// DependencyTracker maintains the directed acyclic graph of "module A
// requires module B" edges. Its lock is ordered after the Registry's
// lock and before any record's transition lock (see Coordinator.Require),
// and is held only for the graph mutation itself, never across module
// code.
type DependencyTracker struct {
	mu sync.Mutex
}

// Reference is what Coordinator.Require hands back to a module; it is
// opaque to the module and exists only so Unrequire can find the exact
// edge to remove without re-resolving the dependency by name (which
// could, by then, refer to a different generation of the same name).
type Reference struct {
	dependency *Record
}

// reachable reports whether to is reachable from from by following
// requires edges, used to reject a new edge that would close a cycle.
// It holds t.mu for the walk.
func (t *DependencyTracker) reachable(from, to *Record) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if from == to {
		return true
	}
	seen := map[*Record]bool{from: true}
	stack := append([]*Record(nil), from.requires...)
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if cur == to {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, cur.requires...)
	}
	return false
}

// addEdge records dependent -> dependency. Callers must have already
// verified acyclicity and hold no record's transition lock.
func (t *DependencyTracker) addEdge(dependent, dependency *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dependent.requires = append(dependent.requires, dependency)
	dependency.requiredBy[dependent]++
}

// removeEdge undoes addEdge. It is a no-op if the edge is not present,
// which happens if unrequire races an unrelated unload that already
// released every edge for dependent.
func (t *DependencyTracker) removeEdge(dependent, dependency *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(dependent.requires) - 1; i >= 0; i-- {
		if dependent.requires[i] == dependency {
			dependent.requires = append(dependent.requires[:i], dependent.requires[i+1:]...)
			break
		}
	}

	if n := dependency.requiredBy[dependent]; n <= 1 {
		delete(dependency.requiredBy, dependent)
	} else {
		dependency.requiredBy[dependent] = n - 1
	}
}

// releaseAllReverse detaches every edge dependent holds, in reverse
// acquisition order, and returns the dependencies so the caller can
// unref each in turn. Used when a module is unloaded: its own unload
// entrypoint should have called Unrequire for everything it explicitly
// required, but any it forgot are force-released here so refcounts
// never leak past an unload.
func (t *DependencyTracker) releaseAllReverse(dependent *Record) []*Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	edges := dependent.requires
	dependent.requires = nil
	out := make([]*Record, len(edges))
	for i, dep := range edges {
		out[len(edges)-1-i] = dep
		if n := dep.requiredBy[dependent]; n <= 1 {
			delete(dep.requiredBy, dependent)
		} else {
			dep.requiredBy[dependent] = n - 1
		}
	}
	return out
}
