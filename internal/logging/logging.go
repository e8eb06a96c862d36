// Package logging constructs the process-wide zap logger, matching
// the original tool's colorized [+]/[!]/[X] console prefixes instead
// of zap's default level names.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a development-style zap logger at the given level, with
// no timestamp/caller noise (console tools don't need them) and a
// custom level encoder producing the original's prefix convention.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = ""
	cfg.EncoderConfig.EncodeLevel = prefixLevelEncoder
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: invalid --log-level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}
	return log, nil
}

// prefixLevelEncoder renders zap levels as the original's colorized
// [+] (info and below), [!] (warn), [X] (error and above) prefixes.
func prefixLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch {
	case l >= zapcore.ErrorLevel:
		enc.AppendString("\x1b[31m[X]\x1b[0m")
	case l == zapcore.WarnLevel:
		enc.AppendString("\x1b[33m[!]\x1b[0m")
	default:
		enc.AppendString("\x1b[32m[+]\x1b[0m")
	}
}
