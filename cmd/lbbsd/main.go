package main

import (
	lbbscli "github.com/lbbs-go/lbbsd/internal/cli"
)

func main() {
	lbbscli.Run()
}
