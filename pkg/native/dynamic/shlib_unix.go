//go:build darwin || freebsd || linux || netbsd

package dynamic

import "github.com/ebitengine/purego"

// SharedLibrary is a library opened with dlopen.
type SharedLibrary struct {
	handle uintptr
}

// OpenSharedLibrary dlopens path. A bare file name is resolved through the
// dynamic linker's usual search path.
func OpenSharedLibrary(path string) (Library, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, err
	}
	return &SharedLibrary{h}, nil
}

// LookupSymbol returns the address of the named symbol.
func (so *SharedLibrary) LookupSymbol(name string) (uintptr, error) {
	return purego.Dlsym(so.handle, name)
}

// Close releases the library from this process.
func (so *SharedLibrary) Close() error {
	return purego.Dlclose(so.handle)
}

// registerFunc binds the C function at addr to the Go function pointed to
// by fnPtr.
func registerFunc(fnPtr any, addr uintptr) {
	purego.RegisterFunc(fnPtr, addr)
}
