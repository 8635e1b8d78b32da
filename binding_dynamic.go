//go:build !link3delight

package dlvdb

import (
	"go.uber.org/zap"

	"github.com/chazu/dlvdb/pkg/native"
	"github.com/chazu/dlvdb/pkg/native/dynamic"
)

// loadBinding searches for lib3delight and binds it at runtime.
func loadBinding(logger *zap.Logger) (native.API, error) {
	api, err := dynamic.Load(dynamic.DefaultConfig(), logger)
	if err != nil {
		return nil, err
	}
	return api, nil
}
