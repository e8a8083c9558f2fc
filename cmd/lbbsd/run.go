package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lbbsd "github.com/lbbs-go/lbbsd"
	lbbscli "github.com/lbbs-go/lbbsd/internal/cli"
	"github.com/lbbs-go/lbbsd/framework/hooks"
	"github.com/lbbs-go/lbbsd/framework/log"
	"github.com/lbbs-go/lbbsd/framework/config"
	"github.com/lbbs-go/lbbsd/module"

	"github.com/urfave/cli/v2"
)

func init() {
	lbbscli.AddSubcommand(&cli.Command{
		Name:  "run",
		Usage: "start the daemon: autoload configured modules and serve until shutdown",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the lbbsd configuration file",
				Value: filepath.Join(lbbsd.ConfigDirectory(), "lbbsd.conf"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: runCommand,
	})
}

func runCommand(ctx *cli.Context) error {
	log.DefaultLogger.Debug = ctx.Bool("debug")

	cfgPath := ctx.String("config")
	f, err := os.Open(cfgPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open %s: %v", cfgPath, err), 2)
	}
	loaderCfg, err := config.ParseLoader(f, cfgPath)
	f.Close()
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot parse %s: %v", cfgPath, err), 2)
	}
	if loaderCfg.Debug {
		log.DefaultLogger.Debug = true
	}

	overrides := map[string]string{
		"modulesdir": loaderCfg.ModulesDir,
		"statedir":   loaderCfg.StateDir,
	}
	stateDir := lbbsd.StateDirectory(overrides)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return cli.Exit(fmt.Sprintf("cannot create state directory: %v", err), 1)
	}

	backend := module.NewBackend(lbbsd.ModulesDirectory(overrides))
	registry := module.NewRegistry(log.DefaultLogger, backend)
	module.DefaultRegistry = registry
	coord := module.NewCoordinator(registry, backend, log.DefaultLogger)
	module.DefaultCoordinator = coord
	autoload := module.NewAutoload(coord, registry, log.DefaultLogger)

	entries := make([]module.AutoloadEntry, 0, len(loaderCfg.Autoload))
	for _, e := range loaderCfg.Autoload {
		var flags module.Flags
		for _, f := range e.Flags {
			if strings.EqualFold(f, "exports-global-symbols") {
				flags |= module.FlagExportsGlobalSymbols
			}
		}
		entries = append(entries, module.AutoloadEntry{Name: e.Name, Flags: flags})
	}

	res := autoload.LoadAll(entries)
	log.DefaultLogger.Msg("autoload complete", "status", res.String(), "loaded", len(res.Loaded), "failed", len(res.Failed))

	ctl := module.NewControlServer(coord, log.DefaultLogger)
	sockPath := filepath.Join(stateDir, "lbbsd.ctl")
	if err := ctl.Listen(sockPath); err != nil {
		return cli.Exit(fmt.Sprintf("cannot listen on control socket: %v", err), 1)
	}
	go func() {
		if err := ctl.Serve(); err != nil {
			log.DefaultLogger.Debugf("control socket closed: %v", err)
		}
	}()

	sig := handleSignals()
	log.DefaultLogger.Printf("shutting down (signal %v)", sig)

	ctl.Close()
	coord.BeginShutdown()
	hooks.RunHooks(hooks.EventDrainDeferred)
	coord.DrainDeferred()
	unloadRes := autoload.UnloadAll()
	hooks.RunHooks(hooks.EventShutdown)

	if unloadRes.Partial() {
		return cli.Exit("shutdown completed with failures", 1)
	}
	return nil
}
