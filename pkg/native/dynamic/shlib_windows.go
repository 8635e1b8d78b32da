//go:build windows

package dynamic

import (
	"github.com/ebitengine/purego"
	"golang.org/x/sys/windows"
)

// SharedLibrary is a DLL opened with LoadLibrary.
type SharedLibrary struct {
	handle windows.Handle
}

// OpenSharedLibrary loads the DLL at path. A bare file name is resolved
// through the standard DLL search order.
func OpenSharedLibrary(path string) (Library, error) {
	h, err := windows.LoadLibrary(path)
	if err != nil {
		return nil, err
	}
	return &SharedLibrary{h}, nil
}

// LookupSymbol returns the address of the named export.
func (so *SharedLibrary) LookupSymbol(name string) (uintptr, error) {
	return windows.GetProcAddress(so.handle, name)
}

// Close releases the DLL from this process.
func (so *SharedLibrary) Close() error {
	return windows.FreeLibrary(so.handle)
}

func registerFunc(fnPtr any, addr uintptr) {
	purego.RegisterFunc(fnPtr, addr)
}
