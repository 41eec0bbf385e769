package resource

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	leakEnabled atomic.Bool

	leakMu      sync.RWMutex
	leakHandler func(resource string)

	loggerMu sync.RWMutex
	logger   = zap.NewNop()
)

// EnableLeakCheck toggles leak-sentinel warnings. Off by default; intended
// for development builds and leak-hunting test runs. The sentinel's timing
// follows the garbage collector and must never be relied on for
// correctness.
func EnableLeakCheck(on bool) {
	leakEnabled.Store(on)
}

// SetLeakHandler replaces the default log-based leak report. Passing nil
// restores the default.
func SetLeakHandler(fn func(resource string)) {
	leakMu.Lock()
	defer leakMu.Unlock()
	leakHandler = fn
}

// SetLogger replaces the package logger used for leak warnings.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// reportLeak runs on the finalizer goroutine after an undisposed resource
// became unreachable. It must not reference the resource itself.
func reportLeak(name string) {
	if !leakEnabled.Load() {
		return
	}

	leakMu.RLock()
	handler := leakHandler
	leakMu.RUnlock()

	if handler != nil {
		handler(name)
		return
	}

	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	l.Warn("resource became unreachable without dispose", zap.String("resource", name))
}
