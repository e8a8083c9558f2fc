package module

import (
	"testing"

	"github.com/lbbs-go/lbbsd/framework/log"
)

// TestUnloadAllSkipsUnreleasableRecord covers a record that is loaded,
// has no requiredBy edges, but whose Unload entrypoint itself always
// errors: UnloadAll must record that error in Failed, leave the record in
// StateFailed and move on rather than looping forever.
func TestUnloadAllSkipsUnreleasableRecord(t *testing.T) {
	reg, coord := newTestCoordinator()
	registerStatic(t, reg, "stuck", Entrypoints{
		Unload: func(self *Handle) error { return errBoom },
	})
	if _, err := coord.Load("stuck"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	autoload := NewAutoload(coord, reg, log.Logger{})
	res := autoload.UnloadAll()

	if !res.Partial() {
		t.Fatal("expected UnloadAll to report a partial result")
	}
	if _, ok := res.Failed["stuck"]; !ok {
		t.Fatalf("expected stuck's Unload error in Failed, got %+v", res)
	}

	rec := reg.lookup("stuck")
	rec.mu.Lock()
	state := rec.state
	rec.mu.Unlock()
	if state != StateFailed {
		t.Fatalf("expected stuck to end up Failed after unloadRecord errored, got %v", state)
	}
}

var errBoom = &Error{Kind: KindInternal, Name: "stuck", Reason: "boom"}

// TestAutoloadOrderPreserved verifies LoadAll loads entries strictly in
// the order given, which the console's startup log relies on to explain
// a later dependency failure in terms of an earlier entry.
func TestAutoloadOrderPreserved(t *testing.T) {
	reg, coord := newTestCoordinator()
	var order []string
	for _, n := range []string{"c", "a", "b"} {
		name := n
		registerStatic(t, reg, name, Entrypoints{
			Load: func(self *Handle) error { order = append(order, name); return nil },
		})
	}

	autoload := NewAutoload(coord, reg, log.Logger{})
	res := autoload.LoadAll([]AutoloadEntry{{Name: "c"}, {Name: "a"}, {Name: "b"}})

	if res.Partial() {
		t.Fatalf("expected a clean autoload, got %+v", res)
	}
	want := []string{"c", "a", "b"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
