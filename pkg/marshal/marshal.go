// Package marshal converts between Go values and the C calling convention
// of the native OpenVDB query API. Nothing returned from this package
// references native memory: every library-owned buffer is copied into Go
// memory and handed back to the library's matching free entry point before
// the call returns.
package marshal

import (
	"math"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/chazu/dlvdb/pkg/native"
)

var (
	// ErrQueryFailed is returned when a native query reports failure.
	ErrQueryFailed = errors.New("native query failed")
	// ErrNoPoints is returned when point generation yields no points. It is
	// distinct from ErrQueryFailed since the native call has no other
	// failure signal.
	ErrNoPoints = errors.New("no points generated")
	// ErrNotCString is returned when an argument is not NUL-terminated.
	ErrNotCString = errors.New("argument is not NUL-terminated")
)

// Bounds is xmin, ymin, zmin, xmax, ymax, zmax.
type Bounds [native.BoundsLen]float64

// Marshaler issues native calls through an API. The zero value is not
// usable; construct with New.
type Marshaler struct {
	api    native.API
	logger *zap.Logger
}

// New returns a Marshaler over api. A nil logger disables logging.
func New(api native.API, logger *zap.Logger) *Marshaler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Marshaler{api: api, logger: logger}
}

// BoundingBox queries the bounding box of file, a NUL-terminated path.
func (m *Marshaler) BoundingBox(file []byte) (Bounds, error) {
	if err := checkCString(file); err != nil {
		return Bounds{}, err
	}
	var out Bounds
	if !m.api.GetFileBBox(&file[0], &out[0]) {
		return Bounds{}, errors.Wrapf(ErrQueryFailed, "%s(%q)", native.SymGetFileBBox, trim(file))
	}
	return out, nil
}

// GridNames queries the names of every grid in file, a NUL-terminated path.
// On success the native array is released exactly once, after every name
// has been copied, on every return path.
func (m *Marshaler) GridNames(file []byte) ([]string, error) {
	if err := checkCString(file); err != nil {
		return nil, err
	}
	var (
		count int32
		array unsafe.Pointer
	)
	if !m.api.GetGridNames(&file[0], &count, &array) {
		return nil, errors.Wrapf(ErrQueryFailed, "%s(%q)", native.SymGetGridNames, trim(file))
	}
	defer m.api.FreeGridNames(array)

	switch {
	case count < 0:
		return nil, errors.Wrapf(ErrQueryFailed, "%s(%q) reported %d grids", native.SymGetGridNames, trim(file), count)
	case count == 0:
		return []string{}, nil
	case array == nil:
		return nil, errors.Wrapf(ErrQueryFailed, "%s(%q) reported %d grids but no array", native.SymGetGridNames, trim(file), count)
	}

	entries := unsafe.Slice((**byte)(array), int(count))
	names := make([]string, 0, count)
	for i, entry := range entries {
		if entry == nil {
			m.logger.Warn("grid name list ended early",
				zap.ByteString("file", trim(file)),
				zap.Int("decoded", i),
				zap.Int32("reported", count))
			break
		}
		names = append(names, GoString(entry))
	}
	return names, nil
}

// DensityToPoints samples grid of file into a flat x, y, z sequence. Both
// arguments are NUL-terminated. A zero point count is ErrNoPoints.
func (m *Marshaler) DensityToPoints(file, grid []byte) ([]float32, error) {
	if err := checkCString(file); err != nil {
		return nil, err
	}
	if err := checkCString(grid); err != nil {
		return nil, err
	}
	var (
		count  uintptr
		buffer unsafe.Pointer
	)
	m.api.GeneratePoints(&file[0], &grid[0], &count, &buffer)
	if buffer != nil {
		defer m.api.FreePoints(buffer)
	}
	m.logger.Debug("generated points",
		zap.ByteString("file", trim(file)),
		zap.ByteString("grid", trim(grid)),
		zap.Uint64("count", uint64(count)))

	if count == 0 {
		return nil, errors.Wrapf(ErrNoPoints, "grid %q of %q", trim(grid), trim(file))
	}
	if buffer == nil {
		return nil, errors.Wrapf(ErrQueryFailed, "%s(%q, %q) reported %d points but no buffer",
			native.SymGeneratePoints, trim(file), trim(grid), count)
	}
	if count > math.MaxInt/native.ComponentsPerPoint {
		return nil, errors.Wrapf(ErrQueryFailed, "%s(%q, %q) reported %d points",
			native.SymGeneratePoints, trim(file), trim(grid), count)
	}

	n := int(count) * native.ComponentsPerPoint
	out := make([]float32, n)
	copy(out, unsafe.Slice((*float32)(buffer), n))
	return out, nil
}

func checkCString(b []byte) error {
	if cStringLen(b) < 0 {
		return errors.WithStack(ErrNotCString)
	}
	return nil
}

// trim drops the terminator for messages.
func trim(b []byte) []byte {
	return b[:cStringLen(b)]
}
