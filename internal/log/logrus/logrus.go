// Package logrus adapts sirupsen/logrus to the log.Logger interface used by
// the orq CLI and services.
package logrus

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/slok/orq/internal/log"
)

type logger struct {
	*logrus.Entry
}

// NewLogrus returns a new log.Logger for a logrus implementation.
func NewLogrus(l *logrus.Entry) log.Logger {
	return logger{Entry: l}
}

func (l logger) WithValues(kv map[string]interface{}) log.Logger {
	newLogger := l.Entry.WithFields(kv)
	return NewLogrus(newLogger)
}

func (l logger) WithCtxValues(ctx context.Context) log.Logger {
	return l.WithValues(log.ValuesFromCtx(ctx))
}

func (l logger) SetValuesOnCtx(parent context.Context, values map[string]interface{}) context.Context {
	return log.CtxWithValues(parent, values)
}

func (l logger) Debugf(format string, args ...interface{})   { l.Entry.Debugf(format, args...) }
func (l logger) Infof(format string, args ...interface{})    { l.Entry.Infof(format, args...) }
func (l logger) Warningf(format string, args ...interface{}) { l.Entry.Warningf(format, args...) }
func (l logger) Errorf(format string, args ...interface{})   { l.Entry.Errorf(format, args...) }
