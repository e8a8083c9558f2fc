// Command imap is an example dynamically loaded module: a minimal IMAP
// front end built on go-imap, requiring "storage" for the duration it
// is loaded. As with the smtp module, mailbox semantics are a thin
// external-collaborator stub - every account has one empty INBOX - the
// loader has no interest in IMAP protocol depth.
package main

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	imapbackend "github.com/emersion/go-imap/backend"
	imapserver "github.com/emersion/go-imap/server"

	"github.com/lbbs-go/lbbsd/module"
)

var errNotImplemented = errors.New("imap: not implemented")

type mailbox struct {
	name string
}

func (m *mailbox) Name() string { return m.name }

func (m *mailbox) Info() (*imap.MailboxInfo, error) {
	return &imap.MailboxInfo{Name: m.name}, nil
}

func (m *mailbox) Status(items []imap.StatusItem) (*imap.MailboxStatus, error) {
	status := imap.NewMailboxStatus(m.name, items)
	status.Messages = 0
	status.UidNext = 1
	status.UidValidity = 1
	return status, nil
}

func (m *mailbox) SetSubscribed(subscribed bool) error { return nil }
func (m *mailbox) Check() error                        { return nil }

func (m *mailbox) ListMessages(uid bool, seqSet *imap.SeqSet, items []imap.FetchItem, ch chan<- *imap.Message) error {
	close(ch)
	return nil
}

func (m *mailbox) SearchMessages(uid bool, criteria *imap.SearchCriteria) ([]uint32, error) {
	return nil, nil
}

func (m *mailbox) CreateMessage(flags []string, date time.Time, body imap.Literal) error {
	return errNotImplemented
}

func (m *mailbox) UpdateMessagesFlags(uid bool, seqSet *imap.SeqSet, operation imap.FlagsOp, flags []string) error {
	return errNotImplemented
}

func (m *mailbox) CopyMessages(uid bool, seqSet *imap.SeqSet, dest string) error {
	return errNotImplemented
}

func (m *mailbox) Expunge() error { return nil }

type user struct {
	username string
	inbox    *mailbox
}

func (u *user) Username() string { return u.username }

func (u *user) ListMailboxes(subscribed bool) ([]imapbackend.Mailbox, error) {
	return []imapbackend.Mailbox{u.inbox}, nil
}

func (u *user) GetMailbox(name string) (imapbackend.Mailbox, error) {
	if name == u.inbox.name {
		return u.inbox, nil
	}
	return nil, errors.New("imap: no such mailbox")
}

func (u *user) CreateMailbox(name string) error                       { return errNotImplemented }
func (u *user) DeleteMailbox(name string) error                       { return errNotImplemented }
func (u *user) RenameMailbox(existingName, newName string) error      { return errNotImplemented }
func (u *user) Logout() error                                         { return nil }

type backend struct{}

func (backend) Login(connInfo *imap.ConnInfo, username, password string) (imapbackend.User, error) {
	return &user{username: username, inbox: &mailbox{name: "INBOX"}}, nil
}

type endpoint struct {
	mu       sync.Mutex
	server   *imapserver.Server
	listener net.Listener
	storage  *module.Reference
}

var endp endpoint

func load(self *module.Handle) error {
	ref, err := module.Require(self, "storage")
	if err != nil {
		return err
	}

	srv := imapserver.New(backend{})
	srv.AllowInsecureAuth = true
	addr := ":1430"

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_ = module.Unrequire(self, ref)
		return err
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
		Name:        "imap",
		Description: "minimal IMAP front end",
		Entrypoints: module.Entrypoints{
			Load:   load,
			Unload: unload,
		},
	}); err != nil {
		panic(err)
	}
}
