package module

import (
	"testing"

	"github.com/lbbs-go/lbbsd/framework/log"
)

func newTestRegistry() *Registry {
	return NewRegistry(log.Logger{}, nil)
}

func TestCanonicalName(t *testing.T) {
	cases := map[string]string{
		"Storage":    "storage",
		"storage.so": "storage",
		"  IMAP  ":   "imap",
		"":           "",
	}
	for in, want := range cases {
		if got := canonicalName(in); got != want {
			t.Errorf("canonicalName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegisterStaticDuplicate(t *testing.T) {
	r := newTestRegistry()

	if _, err := r.RegisterStatic(Descriptor{Name: "storage"}); err != nil {
		t.Fatalf("first RegisterStatic: %v", err)
	}
	if _, err := r.RegisterStatic(Descriptor{Name: "storage"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	} else if e, ok := err.(*Error); !ok || e.Kind != KindAlreadyLoaded {
		t.Fatalf("expected KindAlreadyLoaded, got %v", err)
	}
}

func TestRegisterStaticNameCanonicalized(t *testing.T) {
	r := newTestRegistry()

	h, err := r.RegisterStatic(Descriptor{Name: "STORAGE.so"})
	if err != nil {
		t.Fatalf("RegisterStatic: %v", err)
	}
	if h.Name() != "storage" {
		t.Fatalf("Name() = %q, want %q", h.Name(), "storage")
	}
	if rec := r.lookup("Storage"); rec == nil {
		t.Fatal("lookup should find the record under any casing")
	}
}

func TestRefUnrefGating(t *testing.T) {
	r := newTestRegistry()
	h, err := r.RegisterStatic(Descriptor{Name: "a"})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.ref(h.record); err != nil {
		t.Fatalf("ref on a registered (not-yet-loaded) record should succeed: %v", err)
	}
	r.unref(h.record)

	h.record.mu.Lock()
	h.record.state = StateUnloaded
	h.record.mu.Unlock()

	if err := r.ref(h.record); err == nil {
		t.Fatal("ref on an unloaded record should fail")
	}
}

func TestUnrefEnqueuesDeferredReload(t *testing.T) {
	r := newTestRegistry()
	h, err := r.RegisterStatic(Descriptor{Name: "a"})
	if err != nil {
		t.Fatal(err)
	}
	h.record.mu.Lock()
	h.record.state = StateLoaded
	h.record.refcount = 1
	h.record.deferredReload = true
	h.record.mu.Unlock()

	r.unref(h.record)

	name, ok := r.drainOne()
	if !ok || name != "a" {
		t.Fatalf("expected deferred reload of %q to be queued, got ok=%v name=%q", "a", ok, name)
	}
	if _, ok := r.drainOne(); ok {
		t.Fatal("queue should be empty after one drain")
	}
}

func TestListSortedByName(t *testing.T) {
	r := newTestRegistry()
	for _, n := range []string{"c", "a", "b"} {
		if _, err := r.RegisterStatic(Descriptor{Name: n}); err != nil {
			t.Fatal(err)
		}
	}

	infos := r.list()
	if len(infos) != 3 {
		t.Fatalf("len(infos) = %d, want 3", len(infos))
	}
	for i, want := range []string{"a", "b", "c"} {
		if infos[i].Name != want {
			t.Errorf("infos[%d].Name = %q, want %q", i, infos[i].Name, want)
		}
	}
}
