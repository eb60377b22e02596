// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package testutil

import (
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestLogger writes console-encoded log lines to standard output, tagged
// with the name of the test that made it. It satisfies the engine's Logger
// interface, including the Trace and Verbo levels zap does not have, which
// are emitted through a second logger so caller attribution stays correct.
type TestLogger struct {
	*zap.Logger
	verbose *zap.Logger
}

func MakeLogger(t *testing.T) *TestLogger {
	core := consoleCore()

	logger := zap.New(core, zap.AddCaller())
	logger = logger.With(zap.String("test", t.Name()))

	verbose := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	verbose = verbose.With(zap.String("test", t.Name()))

	return &TestLogger{Logger: logger, verbose: verbose}
}

func (tl *TestLogger) Trace(msg string, fields ...zap.Field) {
	tl.verbose.Log(zapcore.DebugLevel, msg, fields...)
}

func (tl *TestLogger) Verbo(msg string, fields ...zap.Field) {
	tl.verbose.Log(zapcore.DebugLevel, msg, fields...)
}

// Intercept registers hook to observe every entry logged through the main
// levels. Trace and Verbo entries are not intercepted.
func (tl *TestLogger) Intercept(hook func(entry zapcore.Entry) error) {
	tl.Logger = tl.Logger.WithOptions(zap.Hooks(hook))
}

// Silence raises the logging threshold so that nothing below Fatal is
// printed.
func (tl *TestLogger) Silence() {
	atomicLevel := zap.NewAtomicLevelAt(zapcore.FatalLevel)
	core := tl.Logger.Core()
	tl.Logger = zap.New(core, zap.AddCaller(), zap.IncreaseLevel(atomicLevel))
	tl.verbose = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.IncreaseLevel(atomicLevel))
}

func consoleCore() zapcore.Core {
	config := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	config.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(strings.ToUpper(l.String()))
	}
	config.EncodeTime = zapcore.TimeEncoderOfLayout("[01-02|15:04:05.000]")
	config.ConsoleSeparator = " "

	encoder := zapcore.NewConsoleEncoder(config)
	atomicLevel := zap.NewAtomicLevelAt(zapcore.DebugLevel)

	return zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), atomicLevel)
}
