//go:build link3delight

package dlvdb

import (
	"go.uber.org/zap"

	"github.com/chazu/dlvdb/pkg/native"
	"github.com/chazu/dlvdb/pkg/native/linked"
)

// loadBinding returns the binding linked at build time.
func loadBinding(logger *zap.Logger) (native.API, error) {
	logger.Debug("using linked 3Delight binding")
	return linked.New()
}
