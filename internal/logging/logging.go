// Package logging builds the daemon's own zap.Logger: a console-friendly
// encoder for attached/foreground use, a JSON encoder for detached daemon
// mode. This is the Daemon Core's operational log, distinct from the
// per-ManagedProcess channels in internal/logmgr.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Mode selects the encoder.
type Mode string

const (
	ModeConsole Mode = "console"
	ModeJSON    Mode = "json"
)

// New builds a zap.Logger at the given level. ModeJSON selects the JSON
// production encoder; any other mode uses the console development encoder
// (spec.md §6 --log-level, NODEDAEMON_LOG_LEVEL).
func New(level string, mode Mode) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.Set(level); err != nil {
			return nil, err
		}
	}

	var cfg zap.Config
	if mode == ModeJSON {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
