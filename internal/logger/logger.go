// Package logger is the process-wide structured logger. Entries are JSON and
// carry the service name. Request-scoped fields such as request_id and user_id
// travel in the context and are picked up by FromContext.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Service is stamped on every entry
const Service = "inventoryserver"

var log *logrus.Logger

// LogLevel represents the logging level
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// Init initializes the global logger. Unknown levels fall back to INFO.
func Init(logLevel string) {
	log = newLogger(logLevel, os.Stdout)
}

func newLogger(logLevel string, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	l.AddHook(serviceHook{})

	level, err := parseLevel(logLevel)
	if err != nil {
		l.Warnf("Invalid log level '%s', defaulting to INFO", logLevel)
	}
	l.SetLevel(level)
	return l
}

// parseLevel accepts the LOG_LEVEL spellings used in deployment configs
func parseLevel(logLevel string) (logrus.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(logLevel)) {
	case "WARNING":
		return logrus.WarnLevel, nil
	case "":
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		return logrus.InfoLevel, err
	}
	return level, nil
}

// serviceHook tags every entry with the service name
type serviceHook struct{}

func (serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (serviceHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["service"]; !ok {
		e.Data["service"] = Service
	}
	return nil
}

// GetLogger returns the global logger instance
func GetLogger() *logrus.Logger {
	if log == nil {
		Init(string(INFO))
	}
	return log
}

// SetOutput redirects the global logger
func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

type fieldsKey struct{}

// ContextWithFields returns a copy of ctx carrying fields merged over any
// already present
func ContextWithFields(ctx context.Context, fields logrus.Fields) context.Context {
	merged := logrus.Fields{}
	if prev, ok := ctx.Value(fieldsKey{}).(logrus.Fields); ok {
		for k, v := range prev {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FromContext returns an entry carrying the request-scoped fields of ctx
func FromContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(GetLogger())
	if ctx == nil {
		return entry
	}
	if fields, ok := ctx.Value(fieldsKey{}).(logrus.Fields); ok {
		return entry.WithFields(fields)
	}
	return entry
}

func Debug(args ...interface{}) {
	GetLogger().Debug(args...)
}

func Debugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

func Info(args ...interface{}) {
	GetLogger().Info(args...)
}

func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

func Warn(args ...interface{}) {
	GetLogger().Warn(args...)
}

func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

func Error(args ...interface{}) {
	GetLogger().Error(args...)
}

func Errorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// WithField returns a logger entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields returns a logger entry with multiple fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

// WithError returns a logger entry carrying err under the "error" key
func WithError(err error) *logrus.Entry {
	return GetLogger().WithError(err)
}
