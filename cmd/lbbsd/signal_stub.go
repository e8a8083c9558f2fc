//go:build windows || plan9
// +build windows plan9

package main

import (
	"os"
	"os/signal"
)

func handleSignals() os.Signal {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	return <-sig
}
