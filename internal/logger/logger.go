package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Log is the global logger
	Log *zap.SugaredLogger

	// logger is the underlying zap logger
	logger *zap.Logger

	// level can be changed after Init, e.g. on config reload
	level = zap.NewAtomicLevel()
)

// Init initializes the logger with the given level and format. Logs go to
// stderr so that CLI output on stdout stays clean.
func Init(lvl, format string) error {
	var config zap.Config

	if format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.Encoding = "console"
	}

	zapLevel, err := ParseLevel(lvl)
	if err != nil {
		return err
	}
	level.SetLevel(zapLevel)
	config.Level = level
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.MessageKey = "msg"
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	Log = logger.Sugar()
	return nil
}

// ParseLevel converts string log level to zapcore.Level
func ParseLevel(lvl string) (zapcore.Level, error) {
	switch lvl {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", lvl)
	}
}

// SetLevel changes the level of the logger built by Init
func SetLevel(lvl string) error {
	zapLevel, err := ParseLevel(lvl)
	if err != nil {
		return err
	}
	level.SetLevel(zapLevel)
	return nil
}

// Level returns the current level
func Level() zapcore.Level {
	return level.Level()
}

// Sync flushes any buffered log entries
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// GetZapLogger returns the underlying zap.Logger, or a no-op logger before
// Init
func GetZapLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Named returns a child logger for one component
func Named(component string) *zap.Logger {
	return GetZapLogger().Named(component)
}
