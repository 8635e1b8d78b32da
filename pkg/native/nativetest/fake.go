// Package nativetest provides an in-process stand-in for lib3delight.
//
// Fake implements native.API entirely in Go. Buffers it hands out are Go
// memory, but they are tracked like native allocations: each must come back
// through the matching free call exactly once, and freed memory is
// overwritten so that a read after free shows up as corrupted data.
package nativetest

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/chazu/dlvdb/pkg/native"
)

// Compile-time interface check.
var _ native.API = (*Fake)(nil)

// Call names recorded by Fake.
const (
	CallGetFileBBox    = native.SymGetFileBBox
	CallGetGridNames   = native.SymGetGridNames
	CallFreeGridNames  = native.SymFreeGridNames
	CallGeneratePoints = native.SymGeneratePoints
	CallFreePoints     = native.SymFreePoints
)

// File describes what the fake library reports for one path.
type File struct {
	Bounds [native.BoundsLen]float64
	Grids  []string
	// Points maps a grid name to flat x, y, z samples.
	Points map[string][]float32

	FailBBox  bool
	FailGrids bool
	// GridCount, when non-nil, is reported instead of len(Grids). It must
	// not exceed len(Grids).
	GridCount *int32
	// NilGridAt, when >= 0, puts a nil entry at that index of the array.
	NilGridAt int
	// NilGridArray reports success with a nil array.
	NilGridArray bool
	// EmptyBuffer returns an allocated buffer alongside a zero point count.
	EmptyBuffer bool
	// NilPointBuffer reports the point count with a nil buffer.
	NilPointBuffer bool
}

// Fake is a native.API backed by Files, keyed by path.
type Fake struct {
	mu     sync.Mutex
	files  map[string]File
	calls  []string
	live   map[unsafe.Pointer]func()
	faults []string
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		files: make(map[string]File),
		live:  make(map[unsafe.Pointer]func()),
	}
}

// NewFile returns a File with no injected faults.
func NewFile() File {
	return File{NilGridAt: -1, Points: map[string][]float32{}}
}

// Add registers the response for path.
func (f *Fake) Add(path string, file File) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = file
	return f
}

// Calls returns every entry point invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how many times the named entry point was invoked.
func (f *Fake) Count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

// Outstanding returns the number of buffers handed out and not yet freed.
func (f *Fake) Outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// Faults returns misuse detected so far, such as double or foreign frees.
func (f *Fake) Faults() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.faults...)
}

func (f *Fake) record(name string, filename *byte) (File, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	file, ok := f.files[cString(filename)]
	return file, ok
}

func (f *Fake) track(p unsafe.Pointer, scribble func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[p] = scribble
}

func (f *Fake) release(name string, p unsafe.Pointer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	scribble, ok := f.live[p]
	if !ok {
		f.faults = append(f.faults, fmt.Sprintf("%s(%p): not a live allocation", name, p))
		return
	}
	scribble()
	delete(f.live, p)
}

// GetFileBBox implements native.API.
func (f *Fake) GetFileBBox(filename *byte, bbox *float64) bool {
	file, ok := f.record(CallGetFileBBox, filename)
	if !ok || file.FailBBox {
		return false
	}
	copy(unsafe.Slice(bbox, native.BoundsLen), file.Bounds[:])
	return true
}

// GetGridNames implements native.API.
func (f *Fake) GetGridNames(filename *byte, numGrids *int32, gridNames *unsafe.Pointer) bool {
	file, ok := f.record(CallGetGridNames, filename)
	if !ok || file.FailGrids {
		return false
	}

	count := int32(len(file.Grids))
	if file.GridCount != nil {
		count = *file.GridCount
	}
	*numGrids = count
	if file.NilGridArray {
		*gridNames = nil
		return true
	}

	// The array is at least one slot long so there is always something
	// to hand back and free.
	strs := make([][]byte, len(file.Grids))
	array := make([]*byte, max(len(file.Grids), 1))
	for i, name := range file.Grids {
		strs[i] = append([]byte(name), 0)
		if i != file.NilGridAt {
			array[i] = &strs[i][0]
		}
	}
	p := unsafe.Pointer(&array[0])
	f.track(p, func() {
		for _, s := range strs {
			for j := range s[:len(s)-1] {
				s[j] = 'X'
			}
		}
		clear(array)
	})
	*gridNames = p
	return true
}

// FreeGridNames implements native.API.
func (f *Fake) FreeGridNames(gridNames unsafe.Pointer) {
	f.release(CallFreeGridNames, gridNames)
}

// GeneratePoints implements native.API.
func (f *Fake) GeneratePoints(filename, densityGrid *byte, numPoints *uintptr, points *unsafe.Pointer) {
	file, ok := f.record(CallGeneratePoints, filename)
	*numPoints = 0
	*points = nil
	if !ok {
		return
	}

	samples := file.Points[cString(densityGrid)]
	switch {
	case file.EmptyBuffer:
		samples = []float32{0}
	case len(samples) == 0:
		return
	case file.NilPointBuffer:
		*numPoints = uintptr(len(samples) / native.ComponentsPerPoint)
		return
	}

	buf := append([]float32(nil), samples...)
	p := unsafe.Pointer(&buf[0])
	f.track(p, func() {
		for i := range buf {
			buf[i] = float32(math.NaN())
		}
	})
	if !file.EmptyBuffer {
		*numPoints = uintptr(len(samples) / native.ComponentsPerPoint)
	}
	*points = p
}

// FreePoints implements native.API.
func (f *Fake) FreePoints(points unsafe.Pointer) {
	f.release(CallFreePoints, points)
}

// cString reads a NUL-terminated string without going through the code
// under test.
func cString(p *byte) string {
	if p == nil {
		return ""
	}
	var b []byte
	for q := p; *q != 0; q = (*byte)(unsafe.Add(unsafe.Pointer(q), 1)) {
		b = append(b, *q)
	}
	return string(b)
}
