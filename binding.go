package dlvdb

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/chazu/dlvdb/pkg/native"
)

// lazyBinding builds a binding table at most once. A failed build is kept
// and returned to every caller; there is no retry.
type lazyBinding struct {
	once sync.Once
	load func(*zap.Logger) (native.API, error)
	api  native.API
	err  error
}

func (b *lazyBinding) get() (native.API, error) {
	b.once.Do(func() {
		b.api, b.err = b.load(currentLogger())
	})
	return b.api, b.err
}

// defaultBinding is shared by every Query opened without WithAPI.
var defaultBinding = &lazyBinding{load: loadBinding}

var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

// SetLogger sets the logger used when loading the library and marshaling
// results. A nil logger disables logging, which is the default.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

func currentLogger() *zap.Logger {
	return logger.Load()
}
