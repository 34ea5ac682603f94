package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.Mutex
	log *zap.SugaredLogger
)

// Init configures the process-wide logger. Call once at startup; library
// code that logs before Init falls back to a development logger.
func Init(environment string) {
	mu.Lock()
	defer mu.Unlock()

	var zl *zap.Logger
	var err error
	if environment == "production" {
		zl, err = zap.NewProduction()
	} else {
		zl, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	log = zl.Sugar()
}

func get() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if log == nil {
		zl, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		log = zl.Sugar()
	}
	return log
}

// Sync flushes buffered log entries.
func Sync() {
	_ = get().Sync()
}

func Info(msg string, keysAndValues ...any) {
	get().Infow(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	get().Warnw(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	get().Errorw(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...any) {
	get().Fatalw(msg, keysAndValues...)
}
