//go:build darwin || linux

package dynamic

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chazu/dlvdb/pkg/marshal"
	"github.com/chazu/dlvdb/pkg/native"
)

func fixtureName() string {
	if runtime.GOOS == "darwin" {
		return "libfake3delight.dylib"
	}
	return "libfake3delight.so"
}

// buildFixture compiles testdata/fake3delight.c into root/lib and returns
// the search config that finds it through the override variable only.
func buildFixture(t *testing.T, defines ...string) Config {
	t.Helper()
	cc, err := exec.LookPath("cc")
	if err != nil {
		t.Skip("no C compiler available")
	}

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0o755))
	out := filepath.Join(root, "lib", fixtureName())

	args := append([]string{"-shared", "-fPIC", "-o", out}, defines...)
	args = append(args, filepath.Join("testdata", "fake3delight.c"))
	cmd := exec.Command(cc, args...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "compiling fixture: %s", output)

	t.Setenv("DELIGHT", root)
	return Config{
		InstallPath: filepath.Join(t.TempDir(), "missing", fixtureName()),
		LibName:     fixtureName(),
		EnvVar:      "DELIGHT",
		EnvSubdir:   "lib",
	}
}

func writeVDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sphere_points.vdb")
	require.NoError(t, os.WriteFile(path, []byte("VDB"), 0o644))
	return path
}

func outstanding(t *testing.T, api *API) int32 {
	t.Helper()
	addr, err := api.lib.LookupSymbol("FakeOutstanding")
	require.NoError(t, err)
	var fn func() int32
	registerFunc(&fn, addr)
	return fn()
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := buildFixture(t)
	api, err := Load(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = api.Close() })

	require.Equal(t, filepath.Join(os.Getenv("DELIGHT"), "lib", fixtureName()), api.Path())

	m := marshal.New(api, nil)
	file, err := marshal.CString(writeVDB(t))
	require.NoError(t, err)

	bounds, err := m.BoundingBox(file)
	require.NoError(t, err)
	require.Equal(t, marshal.Bounds{
		-0.9416000247001648, -0.9416000247001648, -0.9416000247001648,
		1.0593000277876854, 1.0593000277876854, 1.0593000277876854,
	}, bounds)

	grids, err := m.GridNames(file)
	require.NoError(t, err)
	require.Equal(t, []string{"points"}, grids)

	grid, err := marshal.CString("density")
	require.NoError(t, err)
	points, err := m.DensityToPoints(file, grid)
	require.NoError(t, err)
	require.Equal(t, []float32{0, 0.5, 1, 1.5, 2, 2.5}, points)

	require.Zero(t, outstanding(t, api), "native buffers leaked")
}

func TestLoadQueryFailures(t *testing.T) {
	cfg := buildFixture(t)
	api, err := Load(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = api.Close() })

	m := marshal.New(api, nil)
	missing, err := marshal.CString(filepath.Join(t.TempDir(), "missing.vdb"))
	require.NoError(t, err)

	_, err = m.BoundingBox(missing)
	require.ErrorIs(t, err, marshal.ErrQueryFailed)
	_, err = m.GridNames(missing)
	require.ErrorIs(t, err, marshal.ErrQueryFailed)

	file, err := marshal.CString(writeVDB(t))
	require.NoError(t, err)
	grid, err := marshal.CString("temperature")
	require.NoError(t, err)
	_, err = m.DensityToPoints(file, grid)
	require.ErrorIs(t, err, marshal.ErrNoPoints)

	require.Zero(t, outstanding(t, api))
}

func TestLoadMissingEntryPoint(t *testing.T) {
	cfg := buildFixture(t, "-DOMIT_FREE_POINTS")
	_, err := Load(cfg, nil)
	require.ErrorIs(t, err, native.ErrMissingEntryPoint)

	var mse *MissingSymbolError
	require.True(t, errors.As(err, &mse))
	require.Equal(t, []string{native.SymFreePoints}, mse.Symbols)
	require.Contains(t, err.Error(), native.SymFreePoints)
}

func TestLoadNotFound(t *testing.T) {
	t.Setenv("DELIGHT", t.TempDir())
	cfg := Config{
		InstallPath: filepath.Join(t.TempDir(), "lib3delight.so"),
		LibName:     "libdlvdb-does-not-exist.so",
		EnvVar:      "DELIGHT",
		EnvSubdir:   "lib",
	}
	_, err := Load(cfg, nil)
	require.ErrorIs(t, err, native.ErrLibraryNotFound)

	var le *LocateError
	require.True(t, errors.As(err, &le))
	require.Len(t, le.Attempts(), 3)
}
