package jwtgate

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/gatekeep/go-jwt-gate/core"
)

// NewZapLogger returns a core.Logger adapter for zap.Logger. Key/value
// arguments become zap fields.
func NewZapLogger(l *zap.Logger) core.Logger {
	return &zapLoggerAdapter{l.Sugar()}
}

type zapLoggerAdapter struct{ l *zap.SugaredLogger }

func (z *zapLoggerAdapter) Debug(msg string, args ...any) { z.l.Debugw(msg, args...) }
func (z *zapLoggerAdapter) Info(msg string, args ...any)  { z.l.Infow(msg, args...) }
func (z *zapLoggerAdapter) Warn(msg string, args ...any)  { z.l.Warnw(msg, args...) }
func (z *zapLoggerAdapter) Error(msg string, args ...any) { z.l.Errorw(msg, args...) }

// NewZerologLogger returns a core.Logger adapter for zerolog.Logger.
func NewZerologLogger(l zerolog.Logger) core.Logger {
	return &zerologLoggerAdapter{l}
}

type zerologLoggerAdapter struct{ l zerolog.Logger }

func (z *zerologLoggerAdapter) Debug(msg string, args ...any) {
	z.l.Debug().Fields(args).Msg(msg)
}
func (z *zerologLoggerAdapter) Info(msg string, args ...any) {
	z.l.Info().Fields(args).Msg(msg)
}
func (z *zerologLoggerAdapter) Warn(msg string, args ...any) {
	z.l.Warn().Fields(args).Msg(msg)
}
func (z *zerologLoggerAdapter) Error(msg string, args ...any) {
	z.l.Error().Fields(args).Msg(msg)
}

// NewLogrusLogger returns a core.Logger adapter for logrus.FieldLogger.
func NewLogrusLogger(l logrus.FieldLogger) core.Logger {
	return &logrusLoggerAdapter{l}
}

type logrusLoggerAdapter struct{ l logrus.FieldLogger }

func (l *logrusLoggerAdapter) Debug(msg string, args ...any) { l.with(args).Debug(msg) }
func (l *logrusLoggerAdapter) Info(msg string, args ...any)  { l.with(args).Info(msg) }
func (l *logrusLoggerAdapter) Warn(msg string, args ...any)  { l.with(args).Warn(msg) }
func (l *logrusLoggerAdapter) Error(msg string, args ...any) { l.with(args).Error(msg) }

func (l *logrusLoggerAdapter) with(args []any) logrus.FieldLogger {
	if len(args) == 0 {
		return l.l
	}
	return l.l.WithFields(logrusFields(args))
}

// logrusFields pairs up slog-style key/value arguments. A trailing key
// without a value is kept under "!BADKEY", as slog does.
func logrusFields(args []any) logrus.Fields {
	fields := make(logrus.Fields, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			fields["!BADKEY"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields[key] = args[i+1]
	}
	return fields
}
