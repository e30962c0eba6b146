package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It discards everything until Init is called.
var Log = zap.NewNop().Sugar()

// Init replaces Log with a production (JSON) or development (console) logger
// writing at the given level.
func Init(level string, development bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = logger.Sugar()
	return nil
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Log.Sync()
}
