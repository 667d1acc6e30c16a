package logutil

import (
	"github.com/sirupsen/logrus"

	"github.com/forgeci/agent/pkg/secrets"
)

// EntrySink adapts a logrus.Entry to source.LogSink, so the acquisition
// orchestrator's logging calls flow through the same CensoringFormatter
// every other log line in the process uses. It lives in logutil rather
// than pkg/source to keep pkg/source free of a logrus dependency beyond
// the *logrus.Entry it already threads through for structured fields.
type EntrySink struct {
	entry    *logrus.Entry
	registry *secrets.Registry
}

// NewEntrySink returns a LogSink writing through entry, registering
// secrets in registry so later log lines from the same job are censored
// too.
func NewEntrySink(entry *logrus.Entry, registry *secrets.Registry) *EntrySink {
	return &EntrySink{entry: entry, registry: registry}
}

func (s *EntrySink) Output(line string) { s.entry.Info(line) }

func (s *EntrySink) Debug(line string) { s.entry.Debug(line) }

func (s *EntrySink) Warning(line string) { s.entry.Warning(line) }

func (s *EntrySink) Error(line string) { s.entry.Error(line) }

func (s *EntrySink) Progress(percent int, message string) {
	s.entry.WithField("percent", percent).Info(message)
}

func (s *EntrySink) SetSecret(secret string) { s.registry.Add(secret) }

func (s *EntrySink) Command(line string) {
	s.entry.WithField("command", true).Info(line)
}
