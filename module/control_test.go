package module

import (
	"bufio"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/lbbs-go/lbbsd/framework/log"
)

func dialAndSend(t *testing.T, sockPath, line string) []string {
	t.Helper()
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out []string
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			break
		}
		out = append(out, text)
	}
	return out
}

func TestControlServerLoadUnloadModules(t *testing.T) {
	reg, coord := newTestCoordinator()
	registerStatic(t, reg, "widget", Entrypoints{})

	srv := NewControlServer(coord, log.Logger{})
	sockPath := filepath.Join(t.TempDir(), "lbbsd.ctl")
	if err := srv.Listen(sockPath); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	go srv.Serve()

	lines := dialAndSend(t, sockPath, "load widget")
	if len(lines) != 1 || lines[0] != "ok: widget loaded" {
		t.Fatalf("load reply = %v", lines)
	}

	lines = dialAndSend(t, sockPath, "modules")
	if len(lines) != 1 {
		t.Fatalf("modules reply = %v, want one line", lines)
	}

	lines = dialAndSend(t, sockPath, "unload widget")
	if len(lines) != 1 || lines[0] != "ok: widget unloaded" {
		t.Fatalf("unload reply = %v", lines)
	}

	lines = dialAndSend(t, sockPath, "unload widget")
	if len(lines) != 1 || lines[0][:6] != "error:" {
		t.Fatalf("expected an error reply for double unload, got %v", lines)
	}
}

func TestControlServerReloadWait(t *testing.T) {
	reg, coord := newTestCoordinator()
	registerStatic(t, reg, "widget", Entrypoints{})

	srv := NewControlServer(coord, log.Logger{})
	sockPath := filepath.Join(t.TempDir(), "lbbsd.ctl")
	if err := srv.Listen(sockPath); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	go srv.Serve()

	if lines := dialAndSend(t, sockPath, "load widget"); len(lines) != 1 || lines[0] != "ok: widget loaded" {
		t.Fatalf("load reply = %v", lines)
	}

	rec := reg.lookup("widget")
	if err := reg.ref(rec); err != nil {
		t.Fatalf("ref: %v", err)
	}

	replyCh := make(chan []string, 1)
	go func() {
		replyCh <- dialAndSend(t, sockPath, "reload widget --wait")
	}()

	// Give the reload --wait connection time to queue the deferred reload
	// before the record's last reference is released, so the drain below
	// actually has something queued to observe.
	for {
		rec.mu.Lock()
		queued := rec.deferredReload
		rec.mu.Unlock()
		if queued {
			break
		}
		time.Sleep(time.Millisecond)
	}

	reg.unref(rec)
	coord.DrainDeferred()

	lines := <-replyCh
	if len(lines) != 1 || lines[0] != "ok: widget reloaded" {
		t.Fatalf("reload --wait reply = %v", lines)
	}
}

func TestControlServerUnknownCommand(t *testing.T) {
	_, coord := newTestCoordinator()
	srv := NewControlServer(coord, log.Logger{})
	sockPath := filepath.Join(t.TempDir(), "lbbsd.ctl")
	if err := srv.Listen(sockPath); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	go srv.Serve()

	lines := dialAndSend(t, sockPath, "frobnicate widget")
	if len(lines) != 1 || lines[0] != `error: unknown command "frobnicate"` {
		t.Fatalf("reply = %v", lines)
	}
}
