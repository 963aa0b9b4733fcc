package clog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// logrusProvider is the default LogProvider, backed by a dedicated
// logrus.Logger per component so callers can tell access-layer noise
// apart from the rest of a host application's logging.
type logrusProvider struct {
	entry *logrus.Entry
}

func newLogrusProvider(component string) *logrusProvider {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return &logrusProvider{entry: l.WithField("component", component)}
}

func (p *logrusProvider) Critical(msg string, fields map[string]any) {
	p.entry.WithFields(logrus.Fields(fields)).Error("[C] " + msg)
}

func (p *logrusProvider) Error(msg string, fields map[string]any) {
	p.entry.WithFields(logrus.Fields(fields)).Error(msg)
}

func (p *logrusProvider) Warn(msg string, fields map[string]any) {
	p.entry.WithFields(logrus.Fields(fields)).Warn(msg)
}

func (p *logrusProvider) Debug(msg string, fields map[string]any) {
	p.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}
