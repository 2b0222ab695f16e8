// Package logging holds the process-wide zap logger. Library packages call
// logging.L() and never nil-check; until Init runs, the logger is a no-op
// so tests stay silent.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Init configures the global logger. Pass debug=true for development
// encoding with stacktraces on warnings.
func Init(debug bool) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	Set(l)
	return l, nil
}

// Set replaces the global logger. Used by Init and by tests that want to
// capture output.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// L returns the current global logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Named returns a child logger scoped to a subsystem.
func Named(name string) *zap.Logger {
	return L().Named(name)
}
