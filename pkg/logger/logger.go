package logger

import (
	"os"
	"path/filepath"

	"mediadl/internal/model"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. It discards output until Init runs.
var Logger = zap.NewNop()

// Init initializes the logger
func Init(cfg *model.LoggingConfig) error {
	outputs := []string{"stdout"}
	errOutputs := []string{"stderr"}
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return err
		}
		outputs = append(outputs, cfg.FilePath)
		errOutputs = append(errOutputs, cfg.FilePath)
	}

	var logLevel zapcore.Level
	if err := logLevel.UnmarshalText([]byte(cfg.Level)); err != nil {
		logLevel = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeDuration = zapcore.SecondsDurationEncoder

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(logLevel)
	config.Sampling = nil
	config.EncoderConfig = encoderCfg
	config.OutputPaths = outputs
	config.ErrorOutputPaths = errOutputs

	l, err := config.Build()
	if err != nil {
		return err
	}
	Logger = l

	return nil
}

// Sync flushes the logger
func Sync() error {
	return Logger.Sync()
}
