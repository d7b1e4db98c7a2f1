package scheduler

import "go.uber.org/zap"

// cronLogger adapts zap to robfig/cron's Logger interface so panics recovered
// by the cron chain land in the application log.
type cronLogger struct {
	log *zap.SugaredLogger
}

func newCronLogger(log *zap.Logger) cronLogger {
	return cronLogger{log: log.Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
