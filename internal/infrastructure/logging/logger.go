package logging

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger interface {
	Init()

	Debug(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Debugf(template string, args ...any)

	Info(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Infof(template string, args ...any)

	Warn(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Warnf(template string, args ...any)

	Error(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Errorf(template string, args ...any)

	Fatal(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any)
	Fatalf(template string, args ...any)

	Sync() error
}

type LoggerConfig struct {
	// FilePath is a file to log into; empty logs to stdout.
	FilePath string
	Encoding string
	Level    string
	Logger   string
}

func NewLogger(cfg *LoggerConfig) (Logger, error) {
	var l Logger
	switch cfg.Logger {
	case "", "zap":
		l = newZapLogger(cfg)
	case "zerolog":
		l = newZeroLogger(cfg)
	default:
		return nil, fmt.Errorf("logger not supported: %q, supported loggers: [zap, zerolog]", cfg.Logger)
	}

	l.Init()
	return l, nil
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &zapLogger{cfg: &LoggerConfig{}, nop: true}
}

func output(cfg *LoggerConfig) io.Writer {
	if cfg.FilePath == "" {
		return os.Stdout
	}

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
}
