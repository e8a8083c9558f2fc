package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"path/filepath"

	lbbsd "github.com/lbbs-go/lbbsd"
	lbbscli "github.com/lbbs-go/lbbsd/internal/cli"

	"github.com/urfave/cli/v2"
)

func init() {
	stateFlag := &cli.StringFlag{
		Name:  "state",
		Usage: "path to the running daemon's state directory",
		Value: lbbsd.StateDirectory(nil),
	}

	lbbscli.AddSubcommand(&cli.Command{
		Name:      "load",
		Usage:     "load a module by name",
		ArgsUsage: "<name>",
		Flags:     []cli.Flag{stateFlag},
		Action:    ctlAction("load"),
	})
	lbbscli.AddSubcommand(&cli.Command{
		Name:      "unload",
		Usage:     "unload a module by name",
		ArgsUsage: "<name>",
		Flags:     []cli.Flag{stateFlag},
		Action:    ctlAction("unload"),
	})
	lbbscli.AddSubcommand(&cli.Command{
		Name:      "reload",
		Usage:     "reload a module by name",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{stateFlag, &cli.BoolFlag{
			Name:  "queue",
			Usage: "if the module is busy, schedule the reload for when its refcount reaches zero instead of refusing",
		}, &cli.BoolFlag{
			Name:  "wait",
			Usage: "imply --queue and block until the deferred reload actually runs, printing its outcome",
		}},
		Action: ctlAction("reload"),
	})
	lbbscli.AddSubcommand(&cli.Command{
		Name:   "modules",
		Usage:  "list known modules with their state, refcount and description",
		Flags:  []cli.Flag{stateFlag},
		Action: ctlAction("modules"),
	})
}

// ctlAction returns a cli.ActionFunc that sends verb plus the command
// line's positional arguments (and, for reload, --queue/--wait) to the
// running daemon's control socket and prints the reply verbatim.
func ctlAction(verb string) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		sockPath := filepath.Join(ctx.String("state"), "lbbsd.ctl")
		conn, err := net.Dial("unix", sockPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot reach daemon at %s: %v", sockPath, err), 1)
		}
		defer conn.Close()

		cmd := verb
		if ctx.Args().Len() > 0 {
			cmd += " " + ctx.Args().First()
		}
		if verb == "reload" && ctx.Bool("queue") {
			cmd += " --queue"
		}
		if verb == "reload" && ctx.Bool("wait") {
			cmd += " --wait"
		}
		if _, err := fmt.Fprintln(conn, cmd); err != nil {
			return cli.Exit(fmt.Sprintf("cannot send command: %v", err), 1)
		}

		scanner := bufio.NewScanner(conn)
		sawError := false
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				break
			}
			fmt.Println(line)
			if len(line) >= 6 && line[:6] == "error:" {
				sawError = true
			}
		}
		if err := scanner.Err(); err != nil && err != io.EOF {
			return cli.Exit(fmt.Sprintf("connection error: %v", err), 1)
		}
		if sawError {
			return cli.Exit("", 1)
		}
		return nil
	}
}
