//go:build !link3delight

// Package linked implements native.API by linking lib3delight at build
// time. When the "link3delight" build tag is not set, this stub is
// compiled instead, returning an error from New().
//
// Build with: go build -tags=link3delight
package linked

import (
	"errors"

	"github.com/chazu/dlvdb/pkg/native"
)

// New returns an error indicating the linked binding is not available.
// Build with -tags=link3delight to enable.
func New() (native.API, error) {
	return nil, errors.New("linked 3Delight binding not available: build with -tags=link3delight")
}
