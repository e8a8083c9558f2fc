// Command storage is an example dynamically loaded module: an in-memory
// key/value store other modules require as their persistence layer.
// Built as a Go plugin (-buildmode=plugin) and dropped into the
// configured modules directory under the name "storage.so".
package main

import (
	"sync"

	"github.com/lbbs-go/lbbsd/module"
)

type store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var st = &store{data: make(map[string][]byte)}

func (s *store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *store) Put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

func load(self *module.Handle) error {
	return nil
}

func unload(self *module.Handle) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.data = make(map[string][]byte)
	return nil
}

// reload is a no-op: the store's whole purpose is to survive module
// reloads of its dependents, so a reload must leave data intact rather
// than falling back to unload-then-load, which would wipe it via
// unload's reset of st.data.
func reload(self *module.Handle) error {
	return nil
}

func init() {
	if _, err := module.Register(module.Descriptor{
		Name:        "storage",
		Description: "in-memory key/value store used by other modules as their persistence layer",
		Entrypoints: module.Entrypoints{
			Load:   load,
			Reload: reload,
			Unload: unload,
		},
	}); err != nil {
		panic(err)
	}
}
