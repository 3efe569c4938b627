// Package navlog builds the zap loggers used by navmesh generation.
package navlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Nop returns a logger that discards everything. It is the default for
// library callers that do not care about build diagnostics.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// New returns a production JSON logger writing to path with size-based
// rotation.
func New(path string) *zap.Logger {
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    32, // MB
		MaxBackups: 4,
	})
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, sink, zap.InfoLevel))
}
