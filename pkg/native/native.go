// Package native defines the abstract binding to 3Delight's OpenVDB query
// API. Implementations (dynamic, linked) resolve the same five C entry
// points behind this interface, so callers never know whether the library
// was loaded at runtime or linked at build time.
package native

import (
	"errors"
	"unsafe"
)

// Exact symbol names exported by lib3delight.
const (
	SymGetFileBBox    = "DlVDBGetFileBBox"
	SymGetGridNames   = "DlVDBGetGridNames"
	SymFreeGridNames  = "DlVDBFreeGridNames"
	SymGeneratePoints = "DlVDBGeneratePoints"
	SymFreePoints     = "DlVDBFreePoints"
)

const (
	// BoundsLen is the number of doubles DlVDBGetFileBBox writes.
	BoundsLen = 6
	// ComponentsPerPoint is the number of floats per generated point.
	ComponentsPerPoint = 3
)

// Symbols lists every entry point a binding must resolve, in ABI order.
var Symbols = []string{
	SymGetFileBBox,
	SymGetGridNames,
	SymFreeGridNames,
	SymGeneratePoints,
	SymFreePoints,
}

var (
	// ErrLibraryNotFound is returned when no candidate path yields a
	// loadable library.
	ErrLibraryNotFound = errors.New("3Delight library not found")
	// ErrMissingEntryPoint is returned when a loaded library lacks one of
	// the required symbols.
	ErrMissingEntryPoint = errors.New("3Delight entry point missing")
)

// API is the set of native entry points. Method signatures mirror the C
// declarations exactly; pointer arguments are raw and follow C ownership.
//
//	bool DlVDBGetFileBBox(const char* filename, double* bbox);
//	bool DlVDBGetGridNames(const char* filename, int* num_grids, const char* const** grid_names);
//	void DlVDBFreeGridNames(const char* const* grid_names);
//	void DlVDBGeneratePoints(const char* filename, const char* densitygrid, size_t* num_points, const float** points);
//	void DlVDBFreePoints(const float* points);
type API interface {
	// GetFileBBox writes six doubles to bbox and reports success.
	GetFileBBox(filename *byte, bbox *float64) bool
	// GetGridNames writes the grid count and a library-owned array of
	// library-owned C strings.
	GetGridNames(filename *byte, numGrids *int32, gridNames *unsafe.Pointer) bool
	// FreeGridNames releases an array returned by GetGridNames.
	FreeGridNames(gridNames unsafe.Pointer)
	// GeneratePoints writes a point count and a library-owned buffer of
	// 3*count floats. A zero count is the only failure signal.
	GeneratePoints(filename, densityGrid *byte, numPoints *uintptr, points *unsafe.Pointer)
	// FreePoints releases a buffer returned by GeneratePoints.
	FreePoints(points unsafe.Pointer)
}
