package dynamic

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chazu/dlvdb/pkg/native"
)

// DefaultEnvVar names the variable holding a 3Delight install root.
const DefaultEnvVar = "DELIGHT"

// Library is an opened shared library.
type Library interface {
	LookupSymbol(name string) (uintptr, error)
	Close() error
}

// Opener opens the library at path, which may be absolute or a bare name.
type Opener func(path string) (Library, error)

// Config holds the inputs to the library search.
type Config struct {
	// InstallPath is the absolute location of a standard install. Tried first.
	InstallPath string
	// LibName is the bare file name, resolved by the OS loader. Tried second.
	LibName string
	// EnvVar names the install-root override. When set, EnvVar/EnvSubdir/LibName
	// is tried last.
	EnvVar string
	// EnvSubdir is the directory under the install root holding the library.
	EnvSubdir string
}

// DefaultConfig returns the search inputs for the current platform.
func DefaultConfig() Config {
	return Config{
		InstallPath: defaultInstallPath(),
		LibName:     libName,
		EnvVar:      DefaultEnvVar,
		EnvSubdir:   envSubdir,
	}
}

// candidate is one search attempt. err is set when the attempt could not
// even be formed, e.g. the override variable is unset.
type candidate struct {
	source string
	path   string
	err    error
}

// candidates returns the search order. The override is read from the
// environment at call time.
func (c Config) candidates() []candidate {
	out := make([]candidate, 0, 3)
	if c.InstallPath != "" {
		out = append(out, candidate{source: "install path", path: c.InstallPath})
	}
	if c.LibName != "" {
		out = append(out, candidate{source: "loader search path", path: c.LibName})
	}
	if c.EnvVar != "" {
		root, ok := os.LookupEnv(c.EnvVar)
		if ok && root != "" {
			out = append(out, candidate{
				source: "$" + c.EnvVar,
				path:   filepath.Join(root, c.EnvSubdir, c.LibName),
			})
		} else {
			out = append(out, candidate{
				source: "$" + c.EnvVar,
				err:    errors.Errorf("environment variable %s not set", c.EnvVar),
			})
		}
	}
	return out
}

// Locate tries each candidate in order and returns the first library that
// opens, with the path it was opened from. If none open, the returned error
// wraps native.ErrLibraryNotFound and carries every attempt's failure.
func Locate(cfg Config, open Opener, logger *zap.Logger) (Library, string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var errs error
	for _, c := range cfg.candidates() {
		if c.err != nil {
			logger.Debug("skipping 3Delight candidate", zap.String("source", c.source), zap.Error(c.err))
			errs = multierr.Append(errs, c.err)
			continue
		}
		lib, err := open(c.path)
		if err != nil {
			logger.Debug("3Delight candidate failed to load",
				zap.String("source", c.source),
				zap.String("path", c.path),
				zap.Error(err))
			errs = multierr.Append(errs, errors.Wrapf(err, "%s %q", c.source, c.path))
			continue
		}
		logger.Debug("loaded 3Delight library", zap.String("source", c.source), zap.String("path", c.path))
		return lib, c.path, nil
	}

	if errs == nil {
		errs = errors.New("no search locations configured")
	}
	return nil, "", &LocateError{cause: errs}
}

// LocateError aggregates every failed search attempt. It matches
// native.ErrLibraryNotFound with errors.Is.
type LocateError struct {
	cause error
}

func (e *LocateError) Error() string {
	return native.ErrLibraryNotFound.Error() + ": " + e.cause.Error()
}

func (e *LocateError) Is(target error) bool {
	return target == native.ErrLibraryNotFound
}

func (e *LocateError) Unwrap() error {
	return e.cause
}

// Attempts returns the individual failures in search order.
func (e *LocateError) Attempts() []error {
	return multierr.Errors(e.cause)
}
