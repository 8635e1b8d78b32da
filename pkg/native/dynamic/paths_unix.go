//go:build !darwin && !windows

package dynamic

const (
	installPath = "/usr/local/3delight/lib/lib3delight.so"
	libName     = "lib3delight.so"
	envSubdir   = "lib"
)

func defaultInstallPath() string { return installPath }
