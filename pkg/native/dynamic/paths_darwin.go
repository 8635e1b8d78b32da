//go:build darwin

package dynamic

const (
	installPath = "/Applications/3Delight/lib/lib3delight.dylib"
	libName     = "lib3delight.dylib"
	envSubdir   = "lib"
)

func defaultInstallPath() string { return installPath }
