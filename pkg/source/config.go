package source

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ConfigModification tracks every config key this acquisition has
// written to the on-disk config (Finalize's persist step, when
// credentials are exposed), so Unset can undo exactly those writes.
// Prepare and Submodules pass their settings as per-invocation "-c"
// flags and record nothing here. Nothing in the orchestrator calls
// Unset. Grounded on spec's reconciliation rule: any successful write records
// its key; removal prefers "config --unset" and falls back to a textual
// edit of the on-disk config file, because a partially-written secret
// must never remain.
type ConfigModification struct {
	written map[string]string
}

// NewConfigModification returns an empty tracker.
func NewConfigModification() *ConfigModification {
	return &ConfigModification{written: map[string]string{}}
}

// Record marks key as written with value, for later removal.
func (c *ConfigModification) Record(key, value string) {
	c.written[key] = value
}

// Keys returns every key this tracker has recorded, in no particular
// order.
func (c *ConfigModification) Keys() []string {
	keys := make([]string, 0, len(c.written))
	for k := range c.written {
		keys = append(keys, k)
	}
	return keys
}

// unsetFunc matches interactor.ConfigUnset's signature, parameterized so
// config.go has no direct dependency on pkg/git.
type unsetFunc func(key string) error

// Unset removes every recorded key via unset, falling back to a textual
// edit of configPath for any key unset fails to remove. Returns the keys
// that required the textual fallback, for diagnostic logging.
func (c *ConfigModification) Unset(unset unsetFunc, configPath string) ([]string, error) {
	var fallbackNeeded []string
	for key := range c.written {
		if err := unset(key); err != nil {
			fallbackNeeded = append(fallbackNeeded, key)
		}
	}
	if len(fallbackNeeded) == 0 {
		return nil, nil
	}
	if err := c.textualRemove(configPath, fallbackNeeded); err != nil {
		return fallbackNeeded, fmt.Errorf("textual config fallback failed: %w", err)
	}
	return fallbackNeeded, nil
}

// textualRemove reads configPath and strips every line matching
// "<key> = <value>" for each of keys, case-insensitively, with the
// configured value regex-escaped.
func (c *ConfigModification) textualRemove(configPath string, keys []string) error {
	contents, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	lines := strings.Split(string(contents), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if matchesAny(line, keys, c.written) {
			continue
		}
		kept = append(kept, line)
	}

	return os.WriteFile(configPath, []byte(strings.Join(kept, "\n")), 0644)
}

func matchesAny(line string, keys []string, written map[string]string) bool {
	for _, key := range keys {
		value := written[key]
		pattern := fmt.Sprintf(`(?i)^\s*%s\s*=\s*%s\s*$`, regexp.QuoteMeta(key), regexp.QuoteMeta(value))
		if matched, _ := regexp.MatchString(pattern, line); matched {
			return true
		}
	}
	return false
}

// ReplaceURL textually replaces every occurrence of oldURL with newURL in
// configPath. Used by textuallyScrubRemoteURL, the fallback path when
// "remote set-url" fails to strip a credential-embedded URL.
func ReplaceURL(configPath, oldURL, newURL string) error {
	contents, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	replaced := strings.ReplaceAll(string(contents), oldURL, newURL)
	return os.WriteFile(configPath, []byte(replaced), 0644)
}
