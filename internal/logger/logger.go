package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger represents an interface for a logger
type Logger interface {
	SetToDebug()
	SetToInfo()
	SetToError()
	SetOutput(w io.Writer)
	Module(ns string) Logger
	Debug(msg string, keyValues ...interface{})
	Info(msg string, keyValues ...interface{})
	Warn(msg string, keyValues ...interface{})
	Error(msg string, keyValues ...interface{})
	Fatal(msg string, keyValues ...interface{})
}

// Logrus implements Logger on top of logrus
type Logrus struct {
	log   *logrus.Logger
	entry *logrus.Entry
}

// New creates a new logger writing to stdout
func New() *Logrus {
	return NewWriter(os.Stdout)
}

// NewWriter creates a new logger that writes to the provided writer
func NewWriter(w io.Writer) *Logrus {
	l := logrus.New()
	l.Out = w
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
	})
	return &Logrus{log: l, entry: logrus.NewEntry(l)}
}

// NewNop creates a logger that discards everything
func NewNop() *Logrus {
	return NewWriter(io.Discard)
}

// SetToDebug sets the logger level to debug
func (l *Logrus) SetToDebug() {
	l.log.SetLevel(logrus.DebugLevel)
}

// SetToInfo sets the logger level to info
func (l *Logrus) SetToInfo() {
	l.log.SetLevel(logrus.InfoLevel)
}

// SetToError sets the logger level to error
func (l *Logrus) SetToError() {
	l.log.SetLevel(logrus.ErrorLevel)
}

// SetOutput sets the output destination for the logger
func (l *Logrus) SetOutput(w io.Writer) {
	l.log.SetOutput(w)
}

// Module returns a child logger tagged with the module name.
// Level and output stay shared with the parent.
func (l *Logrus) Module(ns string) Logger {
	return &Logrus{log: l.log, entry: l.entry.WithField("module", ns)}
}

// Debug logs a message at debug level
func (l *Logrus) Debug(msg string, keyValues ...interface{}) {
	l.entry.WithFields(toFields(keyValues)).Debug(msg)
}

// Info logs a message at info level
func (l *Logrus) Info(msg string, keyValues ...interface{}) {
	l.entry.WithFields(toFields(keyValues)).Info(msg)
}

// Warn logs a message at warning level
func (l *Logrus) Warn(msg string, keyValues ...interface{}) {
	l.entry.WithFields(toFields(keyValues)).Warn(msg)
}

// Error logs a message at error level
func (l *Logrus) Error(msg string, keyValues ...interface{}) {
	l.entry.WithFields(toFields(keyValues)).Error(msg)
}

// Fatal logs a message and exits the process
func (l *Logrus) Fatal(msg string, keyValues ...interface{}) {
	l.entry.WithFields(toFields(keyValues)).Fatal(msg)
}

func toFields(keyValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i < len(keyValues); i += 2 {
		key := fmt.Sprint(keyValues[i])
		if i+1 >= len(keyValues) {
			fields[key] = "MISSING"
			break
		}
		fields[key] = keyValues[i+1]
	}
	return fields
}
