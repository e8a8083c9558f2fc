package main

import (
	"fmt"
	"runtime/debug"

	lbbscli "github.com/lbbs-go/lbbsd/internal/cli"
	"github.com/urfave/cli/v2"
)

func init() {
	lbbscli.AddSubcommand(&cli.Command{
		Name:  "version",
		Usage: "print version information and exit",
		Action: func(ctx *cli.Context) error {
			printBuildInfo()
			return nil
		},
	})
}

const Version = "unknown (built from source tree)"

func printBuildInfo() {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version == "(devel)" {
			fmt.Println("lbbsd", Version)
		} else {
			fmt.Println("lbbsd", info.Main.Version, info.Main.Sum)
		}
	} else {
		fmt.Println("lbbsd", Version, "(GOPATH build)")
		fmt.Println()
		fmt.Println("Building lbbsd in GOPATH mode can lead to wrong dependency")
		fmt.Println("versions being used. Problems created by this will not be")
		fmt.Println("addressed. Make sure you are building in Module Mode")
		fmt.Println("(see README for details)")
	}
}
