package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	mtx    sync.Mutex
)

// Get returns the process-wide sugared logger, initializing a development
// logger on first use. Hosts that own logging call Set before starting the engine.
func Get() *zap.SugaredLogger {
	mtx.Lock()
	defer mtx.Unlock()

	if logger == nil {
		lg, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		logger = lg
		sugar = lg.Sugar()
	}
	return sugar
}

// Set replaces the process-wide logger.
func Set(l *zap.Logger) {
	mtx.Lock()
	defer mtx.Unlock()
	logger = l
	sugar = l.Sugar()
}
