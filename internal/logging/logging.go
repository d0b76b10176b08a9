// Package logging builds the zap logger shared by the CLI and the
// pipeline stages. Stages derive their own named loggers from the root.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the root logger. Verbose enables debug level and caller
// annotations; otherwise output is info-level console encoding suited
// for a terminal pipeline run.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
	}
	return cfg.Build()
}
