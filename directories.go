package lbbsd

import (
	"os"
)

var (
	defaultConfigDirectory  = "/etc/lbbsd"
	defaultStateDirectory   = "/var/lib/lbbsd"
	defaultModulesDirectory = "/usr/lib/lbbsd/modules"
)

// ConfigDirectory returns the directory lbbsd reads its configuration file
// from by default.
func ConfigDirectory() string {
	return defaultConfigDirectory
}

// StateDirectory returns the directory lbbsd keeps runtime state in
// (nothing loader-related is persisted there; it exists for the modules
// themselves, e.g. mailbox storage).
func StateDirectory(overrides map[string]string) string {
	if dir := os.Getenv("LBBSD_STATE_DIR"); dir != "" {
		return dir
	}
	if dir, ok := overrides["statedir"]; ok && dir != "" {
		return dir
	}
	return defaultStateDirectory
}

// ModulesDirectory returns the directory the dynamic loader backend resolves
// shared object modules from by default.
func ModulesDirectory(overrides map[string]string) string {
	if dir := os.Getenv("LBBSD_MODULES_DIR"); dir != "" {
		return dir
	}
	if dir, ok := overrides["modulesdir"]; ok && dir != "" {
		return dir
	}
	return defaultModulesDirectory
}
