package git

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Minimum binary versions named in the operation table: 2.9 for cmdline
// auth-header support, 2.14.2 for overriding the TLS backend on platforms
// whose default TLS stack is not OpenSSL, 2.1 for the LFS extension's
// auth-header support.
const (
	MinAuthHeaderVersion  = "2.9"
	MinTLSBackendVersion  = "2.14.2"
	MinLFSAuthHeaderVersion = "2.1"
)

var versionOutputPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// version is a parsed dotted version, compared component-wise.
type version struct {
	major, minor, patch int
}

func parseVersion(s string) (version, error) {
	m := versionOutputPattern.FindStringSubmatch(s)
	if m == nil {
		return version{}, fmt.Errorf("could not parse version out of %q", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch := 0
	if m[3] != "" {
		patch, _ = strconv.Atoi(m[3])
	}
	return version{major: major, minor: minor, patch: patch}, nil
}

// atLeast reports whether v is greater than or equal to other.
func (v version) atLeast(other version) bool {
	if v.major != other.major {
		return v.major > other.major
	}
	if v.minor != other.minor {
		return v.minor > other.minor
	}
	return v.patch >= other.patch
}

// BinaryVersion runs "git version" and returns the version string it
// reports (e.g. "2.30.1"), parsed out of output like "git version
// 2.30.1".
func BinaryVersion(e executor) (string, error) {
	out, err := e.Run("version")
	if err != nil {
		return "", fmt.Errorf("error probing git version: %w", err)
	}
	m := versionOutputPattern.FindString(strings.TrimSpace(string(out)))
	if m == "" {
		return "", fmt.Errorf("could not parse git version out of %q", out)
	}
	return m, nil
}

// EnsureVersion reports whether actual meets or exceeds min. When
// strict is true and it does not, it returns a descriptive error instead
// of false, so the caller can surface RequirementNotMet directly.
func EnsureVersion(actual, min string, strict bool) (bool, error) {
	actualVersion, err := parseVersion(actual)
	if err != nil {
		return false, err
	}
	minVersion, err := parseVersion(min)
	if err != nil {
		return false, err
	}
	ok := actualVersion.atLeast(minVersion)
	if !ok && strict {
		return false, fmt.Errorf("git binary version %s does not meet required minimum %s", actual, min)
	}
	return ok, nil
}
