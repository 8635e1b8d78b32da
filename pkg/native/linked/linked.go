//go:build link3delight

// Package linked implements native.API by linking lib3delight at build
// time. It requires a C toolchain and the 3Delight SDK; the default build
// uses package dynamic instead.
//
// Build with: go build -tags=link3delight
//
// Set CGO_LDFLAGS=-L$DELIGHT/lib if the library is not on the default
// linker path.
package linked

/*
#cgo LDFLAGS: -l3delight

#include <stdbool.h>
#include <stddef.h>

bool DlVDBGetFileBBox(const char* filename, double* bbox);
bool DlVDBGetGridNames(const char* filename, int* num_grids, const char* const** grid_names);
void DlVDBFreeGridNames(const char* const* grid_names);
void DlVDBGeneratePoints(const char* filename, const char* densitygrid, size_t* num_points, const float** points);
void DlVDBFreePoints(const float* points);
*/
import "C"

import (
	"unsafe"

	"github.com/chazu/dlvdb/pkg/native"
)

// Compile-time interface check.
var _ native.API = (*API)(nil)

// API calls the linked entry points directly. It has no state.
type API struct{}

// New returns the linked binding. It cannot fail once the program has
// linked; the error is kept for parity with the stub.
func New() (native.API, error) {
	return &API{}, nil
}

// GetFileBBox implements native.API.
func (*API) GetFileBBox(filename *byte, bbox *float64) bool {
	return bool(C.DlVDBGetFileBBox((*C.char)(unsafe.Pointer(filename)), (*C.double)(unsafe.Pointer(bbox))))
}

// GetGridNames implements native.API.
func (*API) GetGridNames(filename *byte, numGrids *int32, gridNames *unsafe.Pointer) bool {
	return bool(C.DlVDBGetGridNames(
		(*C.char)(unsafe.Pointer(filename)),
		(*C.int)(unsafe.Pointer(numGrids)),
		(***C.char)(unsafe.Pointer(gridNames)),
	))
}

// FreeGridNames implements native.API.
func (*API) FreeGridNames(gridNames unsafe.Pointer) {
	C.DlVDBFreeGridNames((**C.char)(gridNames))
}

// GeneratePoints implements native.API.
func (*API) GeneratePoints(filename, densityGrid *byte, numPoints *uintptr, points *unsafe.Pointer) {
	C.DlVDBGeneratePoints(
		(*C.char)(unsafe.Pointer(filename)),
		(*C.char)(unsafe.Pointer(densityGrid)),
		(*C.size_t)(unsafe.Pointer(numPoints)),
		(**C.float)(unsafe.Pointer(points)),
	)
}

// FreePoints implements native.API.
func (*API) FreePoints(points unsafe.Pointer) {
	C.DlVDBFreePoints((*C.float)(points))
}
