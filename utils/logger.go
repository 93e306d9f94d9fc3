package utils

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.Mutex
	log *zap.Logger
)

// LogOptions selects the level, encoding and extra sink of a logger.
// Entries always go to stderr because command output owns stdout.
type LogOptions struct {
	Level    string // debug, info, warn or error; warn when empty
	Encoding string // json or console; json when empty
	File     string // appended to alongside stderr when set
}

// NewLogger builds a logger from opts
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if opts.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(opts.Level); err != nil {
			return nil, err
		}
	}

	encoding := opts.Encoding
	if encoding == "" {
		encoding = "json"
	}
	if encoding != "json" && encoding != "console" {
		return nil, fmt.Errorf("unknown log encoding %q", encoding)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = "stacktrace"

	outputs := []string{"stderr"}
	if opts.File != "" {
		outputs = append(outputs, opts.File)
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	if level > zapcore.DebugLevel {
		config.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}

	return config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

// InitLogger replaces the process logger. The previous one is flushed.
func InitLogger(opts LogOptions) (*zap.Logger, error) {
	logger, err := NewLogger(opts)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		_ = log.Sync()
	}
	log = logger
	return log, nil
}

// GetLogger returns the process logger, building a default one on first use
func GetLogger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if log == nil {
		logger, err := NewLogger(LogOptions{})
		if err != nil {
			logger = zap.NewNop()
		}
		log = logger
	}
	return log
}

// CleanupLogger flushes any buffered log entries
func CleanupLogger() {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		_ = log.Sync()
	}
}
