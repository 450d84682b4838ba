package vlog

import (
	"reflect"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap/zapcore"
)

// sentryCore is a zapcore.Core that forwards high-priority entries to
// Sentry as exception events.
type sentryCore struct {
	enabler zapcore.LevelEnabler
	encoder zapcore.Encoder
	sender  *sentry.Client
}

func newSentryCore(dsn, release, environment string, enabler zapcore.LevelEnabler) (zapcore.Core, error) {
	sender, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Release:     release,
		Environment: environment,
	})
	if err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "type",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.EpochTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	return &sentryCore{
		enabler: enabler,
		encoder: zapcore.NewJSONEncoder(encoderConfig),
		sender:  sender,
	}, nil
}

func (c *sentryCore) Enabled(level zapcore.Level) bool {
	return c.enabler.Enabled(level)
}

func (c *sentryCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &sentryCore{enabler: c.enabler, encoder: c.encoder.Clone(), sender: c.sender}
	for i := range fields {
		fields[i].AddTo(clone.encoder)
	}
	return clone
}

func (c *sentryCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *sentryCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	event := sentry.NewEvent()
	event.Level = sentry.Level(ent.Level.String())
	event.Timestamp = ent.Time
	event.Exception = append(event.Exception, sentry.Exception{
		Value: ent.Message,
		Type:  reflect.TypeOf(ent).String(),
	})

	c.sender.CaptureEvent(event, nil, sentry.CurrentHub().Scope())
	return nil
}

func (c *sentryCore) Sync() error {
	if ok := c.sender.Flush(5 * time.Second); !ok {
		return errSentryFlushTimedOut
	}
	return nil
}

var errSentryFlushTimedOut = flushError("timed out flushing Sentry queue")

type flushError string

func (e flushError) Error() string { return string(e) }
