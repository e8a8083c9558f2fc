//go:build docker
// +build docker

package lbbsd

func init() {
	defaultConfigDirectory = "/data"
	defaultStateDirectory = "/data/state"
	defaultModulesDirectory = "/data/modules"
}
