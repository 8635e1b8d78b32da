// Package dlvdb queries OpenVDB files through 3Delight's lib3delight.
//
// A Query names one file. Each method issues one native call and returns
// data copied into Go memory; nothing returned references library-owned
// buffers. The native library is located and bound on the first query and
// the result, success or failure, is kept for the life of the process.
package dlvdb

import (
	"os"
	"strconv"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"

	"github.com/chazu/dlvdb/pkg/marshal"
	"github.com/chazu/dlvdb/pkg/native"
)

var (
	// ErrFileNotFound is returned by Open when the path does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrInvalidGridName is returned when a grid name cannot be passed to
	// the library. It also matches marshal.ErrInteriorNUL.
	ErrInvalidGridName = errors.New("invalid grid name")

	ErrLibraryNotFound   = native.ErrLibraryNotFound
	ErrMissingEntryPoint = native.ErrMissingEntryPoint
	ErrQueryFailed       = marshal.ErrQueryFailed
	ErrNoPoints          = marshal.ErrNoPoints
)

// Bounds is xmin, ymin, zmin, xmax, ymax, zmax.
type Bounds [native.BoundsLen]float64

// Min returns the lower corner.
func (b Bounds) Min() v3.Vec {
	return v3.Vec{X: b[0], Y: b[1], Z: b[2]}
}

// Max returns the upper corner.
func (b Bounds) Max() v3.Vec {
	return v3.Vec{X: b[3], Y: b[4], Z: b[5]}
}

// Box3 returns the bounds as an sdfx box.
func (b Bounds) Box3() sdf.Box3 {
	return sdf.Box3{Min: b.Min(), Max: b.Max()}
}

func (b Bounds) Center() v3.Vec {
	return b.Box3().Center()
}

func (b Bounds) Size() v3.Vec {
	return b.Box3().Size()
}

// Points is a flat x, y, z sequence.
type Points []float32

// Len returns the number of points.
func (p Points) Len() int {
	return len(p) / native.ComponentsPerPoint
}

// At returns point i.
func (p Points) At(i int) v3.Vec {
	j := i * native.ComponentsPerPoint
	return v3.Vec{X: float64(p[j]), Y: float64(p[j+1]), Z: float64(p[j+2])}
}

// Option configures a Query.
type Option func(*Query)

// WithAPI makes the Query call api instead of the process-wide binding.
func WithAPI(api native.API) Option {
	return func(q *Query) {
		q.api = api
	}
}

// Query is a handle on one VDB file. It holds no native resources.
type Query struct {
	path string
	file []byte
	api  native.API
}

// Open returns a Query for path. The path must exist now; it is not checked
// again before each query. Open does not load the native library.
func Open(path string, opts ...Option) (*Query, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(ErrFileNotFound, "%s: %v", path, err)
	}
	file, err := marshal.CString(path)
	if err != nil {
		return nil, errors.Wrapf(ErrFileNotFound, "%s: %v", path, err)
	}
	q := &Query{path: path, file: file}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Path returns the path passed to Open.
func (q *Query) Path() string {
	return q.path
}

// BoundingBox returns the bounding box of the file.
func (q *Query) BoundingBox() (Bounds, error) {
	m, err := q.marshaler()
	if err != nil {
		return Bounds{}, err
	}
	b, err := m.BoundingBox(q.file)
	if err != nil {
		return Bounds{}, err
	}
	return Bounds(b), nil
}

// GridNames returns the name of every grid in the file, in library order.
func (q *Query) GridNames() ([]string, error) {
	m, err := q.marshaler()
	if err != nil {
		return nil, err
	}
	return m.GridNames(q.file)
}

// DensityToPoints samples the named density grid into points. A grid that
// yields nothing, including one that does not exist, is ErrNoPoints.
func (q *Query) DensityToPoints(grid string) (Points, error) {
	g, err := marshal.CString(grid)
	if err != nil {
		return nil, &GridNameError{Name: grid, cause: err}
	}
	m, err := q.marshaler()
	if err != nil {
		return nil, err
	}
	pts, err := m.DensityToPoints(q.file, g)
	if err != nil {
		return nil, err
	}
	return Points(pts), nil
}

func (q *Query) marshaler() (*marshal.Marshaler, error) {
	api := q.api
	if api == nil {
		var err error
		if api, err = defaultBinding.get(); err != nil {
			return nil, err
		}
	}
	return marshal.New(api, currentLogger()), nil
}

// GridNameError reports a grid name the library cannot accept. It matches
// ErrInvalidGridName and unwraps to the encoding failure.
type GridNameError struct {
	Name  string
	cause error
}

func (e *GridNameError) Error() string {
	return ErrInvalidGridName.Error() + " " + strconv.Quote(e.Name) + ": " + e.cause.Error()
}

func (e *GridNameError) Is(target error) bool {
	return target == ErrInvalidGridName
}

func (e *GridNameError) Unwrap() error {
	return e.cause
}
