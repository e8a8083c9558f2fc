//go:build windows || plan9
// +build windows plan9

package module

import "errors"

// platformExt matches openShared's error on this platform: no extension
// is ever resolved because no path is ever opened.
func platformExt() string { return ".so" }

// openShared reports that dynamic loading is unsupported on this
// platform. Statically compiled modules (Registry.RegisterStatic) still
// work; only shared-object loading is unavailable.
func openShared(path string, flags Flags) (interface{}, error) {
	return nil, &BackendError{
		Kind:  KindMalformed,
		Path:  path,
		Cause: errors.New("module: dynamic loading is not supported on this platform"),
	}
}

func closeShared(backing interface{}) error {
	return errors.New("module: dynamic loading is not supported on this platform")
}
