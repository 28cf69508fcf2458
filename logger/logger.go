package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogStreamer is the structured logger the service layer threads through
// every operation. Each call carries the operation's trace ID and a source
// tag ("SERVICE", "REPO", "CRON") so one user action can be followed end
// to end.
type LogStreamer struct {
	zl *zap.Logger
}

// NewLogStreamer builds a production zap logger. Environment "dev"
// switches to the development config for human-readable output.
func NewLogStreamer(environment string) (*LogStreamer, error) {
	var (
		zl  *zap.Logger
		err error
	)
	if environment == "dev" {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return &LogStreamer{zl: zl}, nil
}

// Log emits one structured entry.
func (l *LogStreamer) Log(level zapcore.Level, traceID, message string, fields map[string]any, source string, err error) {
	zf := make([]zap.Field, 0, len(fields)+3)
	if traceID != "" {
		zf = append(zf, zap.String("traceID", traceID))
	}
	zf = append(zf, zap.String("source", source))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	if err != nil {
		zf = append(zf, zap.Error(err))
	}

	switch level {
	case zapcore.DebugLevel:
		l.zl.Debug(message, zf...)
	case zapcore.WarnLevel:
		l.zl.Warn(message, zf...)
	case zapcore.ErrorLevel:
		l.zl.Error(message, zf...)
	default:
		l.zl.Info(message, zf...)
	}
}

// Sync flushes buffered entries; call on shutdown.
func (l *LogStreamer) Sync() {
	_ = l.zl.Sync()
}
