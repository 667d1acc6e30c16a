package source

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAskpassHelper writes a small executable script under tempDir whose
// sole effect is to print password on standard output, and returns its
// path. Used when a client private key is itself password-protected, so
// the external binary can obtain the passphrase non-interactively via
// "core.askpass".
func WriteAskpassHelper(tempDir, password string) (string, error) {
	path := filepath.Join(tempDir, "askpass-helper.sh")
	contents := fmt.Sprintf("#!/bin/sh\nprintf %%s %s\n", shellEscape(password))
	if err := os.WriteFile(path, []byte(contents), 0775); err != nil {
		return "", fmt.Errorf("writing askpass helper: %w", err)
	}
	return path, nil
}

// RemoveAskpassHelper deletes the helper script at path, swallowing a
// not-exist error since Finalize may run this more than once.
func RemoveAskpassHelper(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing askpass helper: %w", err)
	}
	return nil
}

// shellEscape wraps s in single quotes, escaping any embedded single
// quote, so the generated script prints password verbatim regardless of
// its contents.
func shellEscape(s string) string {
	escaped := ""
	for _, r := range s {
		if r == '\'' {
			escaped += `'\''`
		} else {
			escaped += string(r)
		}
	}
	return "'" + escaped + "'"
}
