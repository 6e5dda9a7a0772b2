// Package log holds the process wide logger. Packages log through L the same
// way everywhere, and the CLI adjusts verbosity with SetLevel.
package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the shared logger
var L *zap.SugaredLogger

var atom = zap.NewAtomicLevelAt(zap.WarnLevel)

func init() {
	cfg := zap.Config{
		Level:            atom,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}

	L = l.Sugar()
}

// SetLevel changes the level of L. Accepted values are zap's level names
// (debug, info, warn, error).
func SetLevel(level string) error {
	if err := atom.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return nil
}

// Level returns the current level of L
func Level() string {
	return atom.Level().String()
}
