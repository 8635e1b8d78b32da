//go:build windows

package dynamic

import (
	"os"
	"path/filepath"
)

const (
	libName   = "3Delight.dll"
	envSubdir = "bin"
)

// defaultInstallPath expands %ProgramFiles% rather than embedding it
// literally, falling back to the stock location when it is unset.
func defaultInstallPath() string {
	root := os.Getenv("ProgramFiles")
	if root == "" {
		root = `C:\Program Files`
	}
	return filepath.Join(root, "3Delight", "bin", libName)
}
