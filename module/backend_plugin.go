//go:build !windows && !plan9
// +build !windows,!plan9

package module

import (
	"errors"
	"os"
	"plugin"
)

// platformExt is the shared object extension the Dynamic Loader Backend
// appends to a canonical module name to resolve a filesystem path.
func platformExt() string { return ".so" }

// openShared opens the plugin at path. flags is currently informational
// only: Go's plugin package gives every opened plugin process-wide
// symbol visibility and there is no portable way to request the
// isolated form FlagExportsGlobalSymbols implicitly opts out of: dlopen
// without RTLD_GLOBAL. The flag is retained on the record and honored
// by module authors that care (nothing in this package can withhold
// visibility a lower layer already granted).
//
// plugin.Open runs the shared object's package initializers as a side
// effect; those initializers are expected to call module.Register,
// which requires the caller to have first called Backend.Open through
// the record whose name matches the plugin's self-reported name.
func openShared(path string, flags Flags) (interface{}, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &BackendError{Kind: KindNotFound, Path: path, Cause: err}
		}
		return nil, &BackendError{Kind: KindMalformed, Path: path, Cause: err}
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, &BackendError{Kind: KindConstructorErr, Path: path, Cause: err}
	}
	return p, nil
}

// closeShared is a best-effort no-op: the standard library's plugin
// package offers no way to unload a shared object once opened. The
// module's own Unload entrypoint has already released whatever
// resources it holds by the time this is called; dropping the *plugin.Plugin
// value just lets it be garbage collected, the object itself stays
// mapped for the life of the process.
func closeShared(backing interface{}) error {
	if _, ok := backing.(*plugin.Plugin); !ok {
		return errors.New("module: closeShared: not a *plugin.Plugin")
	}
	return nil
}
