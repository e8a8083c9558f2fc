package module

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/lbbs-go/lbbsd/framework/log"
)

// ControlServer exposes the Coordinator's console surface (load, unload,
// reload, modules) over a Unix domain socket, so a separate lbbsdctl
// invocation of the same binary can drive a running daemon. It is a
// deliberately tiny line protocol, not a general RPC layer: each
// connection sends one command and gets one multi-line reply terminated
// by a blank line.
type ControlServer struct {
	coord *Coordinator
	log   log.Logger
	ln    net.Listener
}

func NewControlServer(coord *Coordinator, logger log.Logger) *ControlServer {
	return &ControlServer{coord: coord, log: logger}
}

// Listen removes any stale socket at path and starts accepting
// connections. Serve must be called to actually process them.
func (s *ControlServer) Listen(path string) error {
	if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Serve accepts connections until the listener is closed, handling each
// on its own goroutine since module entrypoints invoked by a command may
// block indefinitely.
func (s *ControlServer) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *ControlServer) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *ControlServer) handle(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	line := strings.TrimSpace(scanner.Text())
	fields := strings.Fields(line)
	if len(fields) == 0 {
		fmt.Fprint(conn, "error: empty command\n\n")
		return
	}

	w := bufio.NewWriter(conn)
	defer w.Flush()

	switch fields[0] {
	case "load":
		s.cmdLoad(w, fields[1:])
	case "unload":
		s.cmdUnload(w, fields[1:])
	case "reload":
		s.cmdReload(w, fields[1:])
	case "modules":
		s.cmdModules(w)
	default:
		fmt.Fprintf(w, "error: unknown command %q\n", fields[0])
	}
	fmt.Fprintln(w)
}

func (s *ControlServer) cmdLoad(w *bufio.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(w, "error: usage: load <name>")
		return
	}
	info, err := s.coord.Load(args[0])
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "ok: %s loaded\n", info.Name)
}

func (s *ControlServer) cmdUnload(w *bufio.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(w, "error: usage: unload <name>")
		return
	}
	info, err := s.coord.Unload(args[0])
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "ok: %s unloaded\n", info.Name)
}

func (s *ControlServer) cmdReload(w *bufio.Writer, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(w, "error: usage: reload <name> [--queue] [--wait]")
		return
	}
	queue, wait := false, false
	name := args[0]
	for _, a := range args[1:] {
		switch a {
		case "--queue":
			queue = true
		case "--wait":
			queue, wait = true, true
		}
	}
	info, err := s.coord.Reload(name, queue)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Kind == KindReloadQueued {
			if !wait {
				fmt.Fprintf(w, "queued: %s\n", name)
				return
			}
			// The caller asked to be held until the deferred reload this
			// call just queued (or joined) actually runs, rather than
			// polling "modules" for the outcome.
			info, err = s.coord.WaitReload(context.Background(), name)
			if err != nil {
				fmt.Fprintf(w, "error: %v\n", err)
				return
			}
			fmt.Fprintf(w, "ok: %s reloaded\n", info.Name)
			return
		}
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "ok: %s reloaded\n", info.Name)
}

func (s *ControlServer) cmdModules(w *bufio.Writer) {
	for _, info := range s.coord.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\trefcount=%d\n", info.Name, info.State, info.Description, info.RefCount)
	}
}
