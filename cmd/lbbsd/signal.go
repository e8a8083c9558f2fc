//go:build !windows && !plan9
// +build !windows,!plan9

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/lbbs-go/lbbsd/framework/hooks"
	"github.com/lbbs-go/lbbsd/framework/log"
)

// handleSignals blocks until a termination signal arrives and returns
// it. SIGUSR1 triggers a log-rotate hook without returning; a second
// termination signal received while already shutting down forces an
// immediate exit rather than waiting on a stalled module unload.
func handleSignals() os.Signal {
	sig := make(chan os.Signal, 5)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)

	for {
		switch s := <-sig; s {
		case syscall.SIGUSR1:
			log.DefaultLogger.Println("SIGUSR1 received, rotating logs")
			hooks.RunHooks(hooks.EventLogRotate)
		default:
			go func() {
				s := handleSignals()
				log.DefaultLogger.Printf("forced shutdown due to signal (%v)!", s)
				os.Exit(1)
			}()
			return s
		}
	}
}
