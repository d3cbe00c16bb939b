package wa

import (
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
)

type zapLogger struct {
	l *zap.SugaredLogger
}

// NewLogger routes whatsmeow's logging into zap.
func NewLogger(logger *zap.Logger) waLog.Logger {
	return &zapLogger{l: logger.Sugar()}
}

func (z *zapLogger) Debugf(msg string, args ...any) { z.l.Debugf(msg, args...) }
func (z *zapLogger) Infof(msg string, args ...any)  { z.l.Infof(msg, args...) }
func (z *zapLogger) Warnf(msg string, args ...any)  { z.l.Warnf(msg, args...) }
func (z *zapLogger) Errorf(msg string, args ...any) { z.l.Errorf(msg, args...) }

func (z *zapLogger) Sub(module string) waLog.Logger {
	return &zapLogger{l: z.l.Named(module)}
}
