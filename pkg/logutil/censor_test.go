package logutil

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/forgeci/agent/pkg/secrets"
)

func TestCensoringFormatter(t *testing.T) {
	var testCases = []struct {
		description string
		entry       *logrus.Entry
		expected    string
	}{
		{
			description: "all occurrences of a single secret in a message are censored",
			entry:       &logrus.Entry{Message: "A SECRET is a SECRET if it is secret"},
			expected:    "level=panic msg=\"A ****** is a ****** if it is secret\"\n",
		},
		{
			description: "occurrences of multiple secrets in a message are censored",
			entry:       &logrus.Entry{Message: "A SECRET is a MYSTERY"},
			expected:    "level=panic msg=\"A ****** is a *******\"\n",
		},
		{
			description: "occurrences of a secret in a field are censored",
			entry:       &logrus.Entry{Message: "message", Data: logrus.Fields{"key": "A SECRET is a MYSTERY"}},
			expected:    "level=panic msg=message key=\"A ****** is a *******\"\n",
		},
		{
			description: "occurrences of a secret in a non-string field are censored",
			entry:       &logrus.Entry{Message: "message", Data: logrus.Fields{"key": fmt.Errorf("A SECRET is a MYSTERY")}},
			expected:    "level=panic msg=message key=\"A ****** is a *******\"\n",
		},
	}

	baseFormatter := &logrus.TextFormatter{DisableColors: true, DisableTimestamp: true}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			registry := secrets.NewRegistry()
			registry.Add("SECRET")
			registry.Add("MYSTERY")
			formatter := NewCensoringFormatter(baseFormatter, registry)

			censored, err := formatter.Format(tc.entry)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(censored) != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, string(censored))
			}
		})
	}
}

func TestCensoringFormatterIgnoresDegenerateSecrets(t *testing.T) {
	entry := &logrus.Entry{Message: "message", Data: logrus.Fields{"key": fmt.Errorf("A SECRET is a secret")}}
	expected := "level=panic msg=message key=\"A ****** is a secret\"\n"
	baseFormatter := &logrus.TextFormatter{DisableColors: true, DisableTimestamp: true}

	for _, degenerate := range []string{"", "   ", "\nSECRET", "SECRET\n", " SECRET "} {
		registry := secrets.NewRegistry()
		registry.Add(degenerate)
		registry.Add("SECRET")
		formatter := NewCensoringFormatter(baseFormatter, registry)

		censored, err := formatter.Format(entry)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(censored) != expected {
			t.Errorf("secret %q: expected %q, got %q", degenerate, expected, string(censored))
		}
	}
}
