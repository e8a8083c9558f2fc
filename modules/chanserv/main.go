// Command chanserv is an example dynamically loaded module: a channel
// registration service that keeps channel ownership records in its own
// in-memory map and requires "storage" while loaded, mirroring how a real
// BBS's ChanServ-equivalent pins its backing store for its whole lifetime.
package main

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/lbbs-go/lbbsd/module"
)

type channel struct {
	ID    uuid.UUID
	Name  string
	Owner string
}

type service struct {
	mu       sync.Mutex
	self     *module.Handle
	storage  *module.Reference
	channels map[string]channel
}

var svc = &service{channels: make(map[string]channel)}

func (s *service) Register(name, owner string) (channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[name]; ok {
		return channel{}, errors.New("chanserv: channel already registered")
	}
	ch := channel{ID: uuid.New(), Name: name, Owner: owner}
	s.channels[name] = ch
	return ch, nil
}

func load(self *module.Handle) error {
	ref, err := module.Require(self, "storage")
	if err != nil {
		return err
	}
	svc.self = self
	svc.storage = ref
	return nil
}

func unload(self *module.Handle) error {
	svc.mu.Lock()
	ref := svc.storage
	svc.storage = nil
	svc.mu.Unlock()

	if ref != nil {
		return module.Unrequire(self, ref)
	}
	return nil
}

func init() {
	if _, err := module.Register(module.Descriptor{
		Name:        "chanserv",
		Description: "channel registration and ownership tracking",
		Entrypoints: module.Entrypoints{
			Load:   load,
			Unload: unload,
		},
	}); err != nil {
		panic(err)
	}
}
