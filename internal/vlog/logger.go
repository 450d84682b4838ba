// Package vlog is vuinputd's structured logger: a zap logger teed to the
// console and to Sentry, plus the dedup bookkeeping that callers such as
// the char-device loop and the uevent monitor use so that a device stuck
// in a crash loop doesn't flood either output.
package vlog

import (
	"context"
	"io"
	"os"
	"runtime/debug"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vuinput/vuinputd/internal/vuerr"
)

var logger *zap.Logger

// Options configures Init. SentryDSN may be empty, in which case events are
// logged to the console only.
type Options struct {
	SentryDSN   string
	Release     string
	Environment string
	Debug       bool

	// LogLevel is the minimum level written to the console (debug, info,
	// warn, error). Empty defaults to info. Debug, if set, forces debug
	// regardless of LogLevel, matching the teacher's single --debug knob.
	LogLevel string
}

// Init builds the process-wide logger. It must be called once, before any
// other package logs anything; cmd/vuinputd calls it in main once the
// configuration is loaded and namespace-helper mode has been ruled out.
func Init(opts Options) error {
	minLevel := levelFromOptions(opts)

	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= minLevel && lvl < zapcore.ErrorLevel
	})

	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderConfig)

	consoleOut := zapcore.Lock(os.Stdout)
	consoleErr := zapcore.Lock(os.Stderr)

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, consoleErr, highPriority),
		zapcore.NewCore(consoleEncoder, consoleOut, lowPriority),
	}

	if opts.SentryDSN != "" {
		sentryCore, err := newSentryCore(opts.SentryDSN, opts.Release, opts.Environment, highPriority)
		if err != nil {
			return vuerr.Wrap(vuerr.Fatal, err, "initializing sentry core")
		}
		cores = append(cores, sentryCore)
	}

	logger = zap.New(zapcore.NewTee(cores...))
	return nil
}

// levelFromOptions resolves the minimum console level: --debug always wins
// (forces debug level), otherwise opts.LogLevel is parsed with zapcore's
// own level names, falling back to info on empty or unrecognized input.
func levelFromOptions(opts Options) zapcore.Level {
	if opts.Debug {
		return zapcore.DebugLevel
	}

	var lvl zapcore.Level
	if opts.LogLevel == "" {
		return zapcore.InfoLevel
	}
	if err := lvl.UnmarshalText([]byte(opts.LogLevel)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// InitDiscard builds a logger that writes nowhere; tests use it so they
// don't spam stdout.
func InitDiscard() {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(io.Discard), zap.DebugLevel)
	logger = zap.New(core)
}

// Close flushes buffered logging before the process exits.
func Close() {
	if logger != nil {
		logger.Sync()
	}
}

// Info logs an informational message; it is never sent to Sentry.
func Info(v ...interface{}) {
	logger.Sugar().Info(v...)
}

// Infof is Info with printf-style formatting.
func Infof(format string, v ...interface{}) {
	logger.Sugar().Infof(format, v...)
}

// Warn logs a warning. Warnings are not sent to Sentry.
func Warn(v ...interface{}) {
	logger.Sugar().Warn(v...)
}

// Warnf is Warn with printf-style formatting.
func Warnf(format string, v ...interface{}) {
	logger.Sugar().Warnf(format, v...)
}

// Error logs err at error level, which the high-priority core also forwards
// to Sentry.
func Error(err error) {
	logger.Sugar().Error(err)
}

// Errorf is Error with printf-style formatting, wrapped into a vuerr.Error
// of kind Fatal so the message still flows through the normal error path.
func Errorf(format string, v ...interface{}) {
	logger.Sugar().Error(vuerr.New(vuerr.Fatal, format, v...))
}

// Panic logs err, prints a stack trace, and cancels the global context
// instead of actually panicking, so every goroutine in the daemon gets a
// chance to clean up. Passing a nil cancel func falls back to a real panic.
func Panic(cancel context.CancelFunc, err error) {
	printStackTrace()

	if cancel != nil {
		Error(err)
		cancel()
		return
	}

	Close()
	logger.Sugar().Panic(err)
}

func printStackTrace() {
	Info("stack trace follows")
	debug.PrintStack()
}
