//go:build !(darwin || freebsd || linux || netbsd || windows)

package dynamic

import (
	"runtime"

	"github.com/pkg/errors"
)

// OpenSharedLibrary always fails on platforms without a loader.
func OpenSharedLibrary(path string) (Library, error) {
	return nil, errors.Errorf("dynamic loading is not supported on %s", runtime.GOOS)
}

func registerFunc(fnPtr any, addr uintptr) {
	panic("dynamic: registerFunc on unsupported platform " + runtime.GOOS)
}
