package dynamic

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chazu/dlvdb/pkg/native"
)

// fakeLibrary is a Library whose symbol table is a map.
type fakeLibrary struct {
	path    string
	symbols map[string]uintptr
	closed  bool
}

func (l *fakeLibrary) LookupSymbol(name string) (uintptr, error) {
	addr, ok := l.symbols[name]
	if !ok {
		return 0, errors.New("undefined symbol: " + name)
	}
	return addr, nil
}

func (l *fakeLibrary) Close() error {
	l.closed = true
	return nil
}

// recordingOpener succeeds only for paths in ok and records every attempt.
func recordingOpener(ok ...string) (Opener, *[]string) {
	var attempts []string
	return func(path string) (Library, error) {
		attempts = append(attempts, path)
		for _, p := range ok {
			if p == path {
				return &fakeLibrary{path: path}, nil
			}
		}
		return nil, errors.New("cannot open shared object file")
	}, &attempts
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		InstallPath: filepath.Join(t.TempDir(), "3delight", "lib", "lib3delight.so"),
		LibName:     "lib3delight.so",
		EnvVar:      "DELIGHT",
		EnvSubdir:   "lib",
	}
}

func TestLocateOverrideWhenInstallPathAbsent(t *testing.T) {
	root := t.TempDir()
	t.Setenv("DELIGHT", root)
	cfg := testConfig(t)
	override := filepath.Join(root, "lib", "lib3delight.so")

	open, attempts := recordingOpener(override)
	lib, path, err := Locate(cfg, open, nil)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if path != override {
		t.Errorf("Locate() path = %q, want %q", path, override)
	}
	if lib.(*fakeLibrary).path != override {
		t.Errorf("Locate() returned library for %q", lib.(*fakeLibrary).path)
	}
	want := []string{cfg.InstallPath, cfg.LibName, override}
	if diff := cmp.Diff(want, *attempts); diff != "" {
		t.Errorf("search order mismatch (-want +got):\n%s", diff)
	}
}

func TestLocateFirstSuccessWins(t *testing.T) {
	root := t.TempDir()
	t.Setenv("DELIGHT", root)
	cfg := testConfig(t)
	override := filepath.Join(root, "lib", "lib3delight.so")

	tests := []struct {
		name     string
		ok       []string
		wantPath string
		wantN    int
	}{
		{"install path", []string{cfg.InstallPath, cfg.LibName, override}, cfg.InstallPath, 1},
		{"bare name before override", []string{cfg.LibName, override}, cfg.LibName, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, attempts := recordingOpener(tt.ok...)
			_, path, err := Locate(cfg, open, nil)
			if err != nil {
				t.Fatalf("Locate() error = %v", err)
			}
			if path != tt.wantPath {
				t.Errorf("Locate() path = %q, want %q", path, tt.wantPath)
			}
			if len(*attempts) != tt.wantN {
				t.Errorf("Locate() made %d attempts %v, want %d", len(*attempts), *attempts, tt.wantN)
			}
		})
	}
}

func TestLocateAllFail(t *testing.T) {
	t.Setenv("DELIGHT", "")
	cfg := testConfig(t)

	open, attempts := recordingOpener()
	lib, path, err := Locate(cfg, open, nil)
	if !errors.Is(err, native.ErrLibraryNotFound) {
		t.Fatalf("Locate() error = %v, want ErrLibraryNotFound", err)
	}
	if lib != nil || path != "" {
		t.Errorf("Locate() = %v, %q on failure", lib, path)
	}
	// An unset override is never opened.
	if len(*attempts) != 2 {
		t.Errorf("Locate() opened %v, want install path and bare name only", *attempts)
	}

	var le *LocateError
	if !errors.As(err, &le) {
		t.Fatalf("Locate() error %T is not *LocateError", err)
	}
	if n := len(le.Attempts()); n != 3 {
		t.Errorf("LocateError has %d attempts, want 3: %v", n, le.Attempts())
	}
}

func TestLocateNoCandidates(t *testing.T) {
	open, _ := recordingOpener()
	_, _, err := Locate(Config{}, open, nil)
	if !errors.Is(err, native.ErrLibraryNotFound) {
		t.Fatalf("Locate() error = %v, want ErrLibraryNotFound", err)
	}
}

func TestLocateLogsAttempts(t *testing.T) {
	root := t.TempDir()
	t.Setenv("DELIGHT", root)
	cfg := testConfig(t)
	override := filepath.Join(root, "lib", "lib3delight.so")

	core, logs := observer.New(zapcore.DebugLevel)
	open, _ := recordingOpener(override)
	if _, _, err := Locate(cfg, open, zap.New(core)); err != nil {
		t.Fatalf("Locate() error = %v", err)
	}

	if n := logs.FilterMessage("3Delight candidate failed to load").Len(); n != 2 {
		t.Errorf("logged %d failed candidates, want 2", n)
	}
	loaded := logs.FilterMessage("loaded 3Delight library").All()
	if len(loaded) != 1 {
		t.Fatalf("logged %d successful loads, want 1", len(loaded))
	}
	if got := loaded[0].ContextMap()["path"]; got != override {
		t.Errorf("logged path = %v, want %q", got, override)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.EnvVar != "DELIGHT" {
		t.Errorf("EnvVar = %q, want DELIGHT", cfg.EnvVar)
	}
	if !filepath.IsAbs(cfg.InstallPath) {
		t.Errorf("InstallPath = %q, want absolute", cfg.InstallPath)
	}
	if filepath.Base(cfg.InstallPath) != cfg.LibName {
		t.Errorf("InstallPath %q does not end in %q", cfg.InstallPath, cfg.LibName)
	}

	want := map[string]struct{ lib, subdir string }{
		"linux":   {"lib3delight.so", "lib"},
		"darwin":  {"lib3delight.dylib", "lib"},
		"windows": {"3Delight.dll", "bin"},
	}
	if w, ok := want[runtime.GOOS]; ok {
		if cfg.LibName != w.lib {
			t.Errorf("LibName = %q, want %q", cfg.LibName, w.lib)
		}
		if cfg.EnvSubdir != w.subdir {
			t.Errorf("EnvSubdir = %q, want %q", cfg.EnvSubdir, w.subdir)
		}
	}
}

func TestBindMissingSymbols(t *testing.T) {
	lib := &fakeLibrary{symbols: map[string]uintptr{
		native.SymGetFileBBox:  1,
		native.SymGetGridNames: 2,
		native.SymFreePoints:   0,
	}}

	api, err := Bind(lib)
	if !errors.Is(err, native.ErrMissingEntryPoint) {
		t.Fatalf("Bind() error = %v, want ErrMissingEntryPoint", err)
	}
	if api != nil {
		t.Error("Bind() returned a partial table")
	}

	var mse *MissingSymbolError
	if !errors.As(err, &mse) {
		t.Fatalf("Bind() error %T is not *MissingSymbolError", err)
	}
	// A null address counts as missing.
	want := []string{native.SymFreeGridNames, native.SymGeneratePoints, native.SymFreePoints}
	if diff := cmp.Diff(want, mse.Symbols); diff != "" {
		t.Errorf("missing symbols mismatch (-want +got):\n%s", diff)
	}
}
