package logging

import (
	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the service logger: an ectologger facade whose sink
// forwards every structured message to zap.
func NewLogger(appName string, logLevel string, prettyLogs bool) (ectologger.Logger, error) {
	var zapConfig zap.Config
	if prettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	if level, err := zapcore.ParseLevel(logLevel); err == nil {
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}

	zapLogger, err := zapConfig.Build(zap.WithCaller(false))
	if err != nil {
		return nil, err
	}
	zapLogger = zapLogger.With(zap.String("app", appName))

	logger := ectologger.NewEctoLogger(func(message ectologger.EctoLogMessage) {
		zapLogger.Info("log", zap.Any("entry", message))
	})

	return logger, nil
}

// NewNopLogger returns a logger that discards everything. Used in tests.
func NewNopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}
