// Package lbbscli wires the module lifecycle operations into a urfave/cli
// application. It owns argument parsing and process exit codes only; the
// actual load/unload/reload/list logic lives in the module package.
package lbbscli

import (
	"flag"
	"fmt"
	"os"

	"github.com/lbbs-go/lbbsd/framework/log"
	"github.com/urfave/cli/v2"
)

var app *cli.App

func init() {
	app = cli.NewApp()
	app.Usage = "lightweight bulletin board system daemon"
	app.Description = `lbbsd hosts pluggable network services (SMTP, IMAP, IRC, ...) and BBS
features as dynamically loaded modules. This executable starts the server
('run') and exposes console commands to inspect and control the module
loader while it is running.
`
	app.Authors = []*cli.Author{
		{
			Name: "lbbsd contributors",
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		cli.HandleExitCoder(err)
		if err != nil {
			log.Println(err)
			cli.OsExiter(1)
		}
	}
	app.EnableBashCompletion = true
	app.Commands = []*cli.Command{
		{
			Name:   "generate-man",
			Hidden: true,
			Action: func(c *cli.Context) error {
				man, err := app.ToMan()
				if err != nil {
					return err
				}
				fmt.Println(man)
				return nil
			},
		},
	}
}

// AddGlobalFlag registers a flag that applies to every subcommand, mirroring
// it onto the stdlib flag.CommandLine so packages that still read flags
// directly (e.g. via flag.Parse in tests) keep working.
func AddGlobalFlag(f cli.Flag) {
	app.Flags = append(app.Flags, f)
	if err := f.Apply(flag.CommandLine); err != nil {
		log.Println("GlobalFlag", f, "could not be mapped to stdlib flag:", err)
	}
}

// AddSubcommand registers a top-level console command.
func AddSubcommand(cmd *cli.Command) {
	app.Commands = append(app.Commands, cmd)
}

// Run parses os.Args and dispatches to the matching subcommand. Each
// operation returns with a status code once the daemon replies; the only
// command that waits for a deferred reload to run is "reload --wait".
func Run() {
	mapStdlibFlags(app)

	if err := app.Run(os.Args); err != nil {
		log.DefaultLogger.Error("app.Run failed", err)
	}
}
