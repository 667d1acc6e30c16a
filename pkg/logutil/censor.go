// Package logutil wires the secrets.Registry into logrus so that no
// registered secret can reach a log sink, no matter which formatter the
// caller otherwise prefers.
package logutil

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/forgeci/agent/pkg/secrets"
)

// CensoringFormatter wraps another logrus.Formatter and masks every
// registered secret out of the rendered message and every field value
// before handing the entry to the wrapped formatter. Modeled on the
// reference stack's prow/logrusutil censoring formatter, whose behavior is
// pinned down here by the same cases its test suite exercises.
type CensoringFormatter struct {
	delegate logrus.Formatter
	registry *secrets.Registry
}

// NewCensoringFormatter builds a CensoringFormatter delegating rendering to
// base after masking.
func NewCensoringFormatter(base logrus.Formatter, registry *secrets.Registry) *CensoringFormatter {
	return &CensoringFormatter{delegate: base, registry: registry}
}

// Format implements logrus.Formatter.
func (f *CensoringFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	censoredEntry := *entry
	censoredEntry.Message = f.registry.Mask(entry.Message)

	if len(entry.Data) > 0 {
		data := make(logrus.Fields, len(entry.Data))
		for k, v := range entry.Data {
			data[k] = f.censorField(v)
		}
		censoredEntry.Data = data
	}

	return f.delegate.Format(&censoredEntry)
}

func (f *CensoringFormatter) censorField(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return f.registry.Mask(val)
	case error:
		return f.registry.Mask(val.Error())
	case fmt.Stringer:
		return f.registry.Mask(val.String())
	default:
		return v
	}
}
