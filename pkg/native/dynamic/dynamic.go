// Package dynamic implements native.API by loading lib3delight at runtime
// and resolving its entry points by name. This is the default binding; it
// needs no C toolchain and no 3Delight SDK at build time.
package dynamic

import (
	"fmt"
	"runtime"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chazu/dlvdb/pkg/native"
)

// Compile-time interface check.
var _ native.API = (*API)(nil)

// API is a binding table resolved from a loaded library. It is immutable
// after Bind returns and safe for concurrent calls.
type API struct {
	lib  Library
	path string

	getFileBBox    func(filename *byte, bbox *float64) bool
	getGridNames   func(filename *byte, numGrids *int32, gridNames *unsafe.Pointer) bool
	freeGridNames  func(gridNames unsafe.Pointer)
	generatePoints func(filename, densityGrid *byte, numPoints *uintptr, points *unsafe.Pointer)
	freePoints     func(points unsafe.Pointer)
}

// MissingSymbolError reports entry points absent from a library. It
// matches native.ErrMissingEntryPoint with errors.Is.
type MissingSymbolError struct {
	Symbols []string
	cause   error
}

func (e *MissingSymbolError) Error() string {
	return fmt.Sprintf("%s: %s", native.ErrMissingEntryPoint, strings.Join(e.Symbols, ", "))
}

func (e *MissingSymbolError) Is(target error) bool {
	return target == native.ErrMissingEntryPoint
}

func (e *MissingSymbolError) Unwrap() error {
	return e.cause
}

// Load locates lib3delight using cfg and binds every entry point. On a
// binding failure the library is closed again.
func Load(cfg Config, logger *zap.Logger) (*API, error) {
	lib, path, err := Locate(cfg, OpenSharedLibrary, logger)
	if err != nil {
		return nil, err
	}
	api, err := Bind(lib)
	if err != nil {
		_ = lib.Close()
		return nil, errors.Wrapf(err, "binding %s", path)
	}
	api.path = path
	return api, nil
}

// Bind resolves every symbol in native.Symbols from lib. Either all five are
// bound or none are: every symbol is looked up before any function is
// registered, and all missing names are reported together.
func Bind(lib Library) (*API, error) {
	addrs := make(map[string]uintptr, len(native.Symbols))
	var missing []string
	var errs error
	for _, name := range native.Symbols {
		addr, err := lib.LookupSymbol(name)
		if err == nil && addr == 0 {
			err = errors.New("null address")
		}
		if err != nil {
			missing = append(missing, name)
			errs = multierr.Append(errs, errors.Wrapf(err, "symbol %s", name))
			continue
		}
		addrs[name] = addr
	}
	if len(missing) > 0 {
		return nil, &MissingSymbolError{Symbols: missing, cause: errs}
	}

	api := &API{lib: lib}
	registerFunc(&api.getFileBBox, addrs[native.SymGetFileBBox])
	registerFunc(&api.getGridNames, addrs[native.SymGetGridNames])
	registerFunc(&api.freeGridNames, addrs[native.SymFreeGridNames])
	registerFunc(&api.generatePoints, addrs[native.SymGeneratePoints])
	registerFunc(&api.freePoints, addrs[native.SymFreePoints])
	return api, nil
}

// Path returns the location the library was loaded from, or "" when the
// table was bound from a caller-supplied Library.
func (a *API) Path() string {
	return a.path
}

// Close releases the library. The table must not be used afterwards.
func (a *API) Close() error {
	return a.lib.Close()
}

// GetFileBBox implements native.API.
func (a *API) GetFileBBox(filename *byte, bbox *float64) bool {
	var pinner runtime.Pinner
	defer pinner.Unpin()
	pin(&pinner, unsafe.Pointer(filename), unsafe.Pointer(bbox))
	return a.getFileBBox(filename, bbox)
}

// GetGridNames implements native.API.
func (a *API) GetGridNames(filename *byte, numGrids *int32, gridNames *unsafe.Pointer) bool {
	var pinner runtime.Pinner
	defer pinner.Unpin()
	pin(&pinner, unsafe.Pointer(filename), unsafe.Pointer(numGrids), unsafe.Pointer(gridNames))
	return a.getGridNames(filename, numGrids, gridNames)
}

// FreeGridNames implements native.API.
func (a *API) FreeGridNames(gridNames unsafe.Pointer) {
	a.freeGridNames(gridNames)
}

// GeneratePoints implements native.API.
func (a *API) GeneratePoints(filename, densityGrid *byte, numPoints *uintptr, points *unsafe.Pointer) {
	var pinner runtime.Pinner
	defer pinner.Unpin()
	pin(&pinner,
		unsafe.Pointer(filename),
		unsafe.Pointer(densityGrid),
		unsafe.Pointer(numPoints),
		unsafe.Pointer(points),
	)
	a.generatePoints(filename, densityGrid, numPoints, points)
}

// FreePoints implements native.API.
func (a *API) FreePoints(points unsafe.Pointer) {
	a.freePoints(points)
}

// pin keeps Go-owned arguments in place while C holds them.
func pin(p *runtime.Pinner, ptrs ...unsafe.Pointer) {
	for _, ptr := range ptrs {
		if ptr != nil {
			p.Pin(ptr)
		}
	}
}
