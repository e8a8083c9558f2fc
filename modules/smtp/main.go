// Command smtp is an example dynamically loaded module: a minimal SMTP
// front end built on go-smtp, requiring "storage" for the duration it
// is loaded so an operator can never unload the store out from under an
// active listener.
//
// Message handling here is deliberately thin - accepting and discarding
// mail - since protocol depth is an external-collaborator concern, not
// something the module loader itself needs to exercise.
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	gosmtp "github.com/emersion/go-smtp"

	"github.com/lbbs-go/lbbsd/module"
)

type backend struct{}

func (backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	return &session{}, nil
}

type session struct {
	from string
	rcpt []string
}

func (s *session) AuthPlain(username, password string) error {
	return nil
}

func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, opts *gosmtp.RcptOptions) error {
	s.rcpt = append(s.rcpt, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lines := 0
	for scanner.Scan() {
		lines++
	}
	return scanner.Err()
}

func (s *session) Reset() {
	s.from = ""
	s.rcpt = nil
}

func (s *session) Logout() error { return nil }

type endpoint struct {
	mu       sync.Mutex
	server   *gosmtp.Server
	listener net.Listener
	storage  *module.Reference
}

var endp endpoint

func load(self *module.Handle) error {
	ref, err := module.Require(self, "storage")
	if err != nil {
		return err
	}

	srv := gosmtp.NewServer(backend{})
	srv.Addr = ":2525"
	srv.Domain = "lbbs.local"
	srv.AllowInsecureAuth = true

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		_ = module.Unrequire(self, ref)
		return fmt.Errorf("smtp: listen %s: %w", srv.Addr, err)
	}

	endp.mu.Lock()
	endp.server = srv
	endp.listener = ln
	endp.storage = ref
	endp.mu.Unlock()

	go srv.Serve(ln)

	return nil
}

func unload(self *module.Handle) error {
	endp.mu.Lock()
	srv := endp.server
	ref := endp.storage
	endp.server = nil
	endp.storage = nil
	endp.mu.Unlock()

	var closeErr error
	if srv != nil {
		closeErr = srv.Close()
	}
	if ref != nil {
		if err := module.Unrequire(self, ref); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}

func init() {
	if _, err := module.Register(module.Descriptor{
		Name:        "smtp",
		Description: "minimal SMTP front end",
		Entrypoints: module.Entrypoints{
			Load:   load,
			Unload: unload,
		},
	}); err != nil {
		panic(err)
	}
}
