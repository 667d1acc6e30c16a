// Package provider implements the provider-variant policy table: per
// repository-provider decisions about whether a cmdline auth header is
// supported, what minimum binary version it requires, and how the header
// value is rendered. Modeled as a table indexed by a type enum rather than
// an inheritance tree, following the tagged-union style the reference
// stack's prow/git/v2 remote resolvers use for their host-specific
// variants (httpResolverFactory vs sshRemoteResolverFactory in
// remote_test.go), generalized here to a four-column policy table instead
// of two resolver kinds.
package provider

import (
	"fmt"
	"strings"

	"github.com/forgeci/agent/pkg/urlutil"
)

// Type enumerates the repository provider variants a RepositoryDescriptor
// may name.
type Type int

const (
	External Type = iota
	GitHub
	GitHubEnterprise
	Bitbucket
	CentralHosted
	CentralOnPrem
)

func (t Type) String() string {
	switch t {
	case External:
		return "External"
	case GitHub:
		return "GitHub"
	case GitHubEnterprise:
		return "GitHubEnterprise"
	case Bitbucket:
		return "Bitbucket"
	case CentralHosted:
		return "CentralHosted"
	case CentralOnPrem:
		return "CentralOnPrem"
	default:
		return "Unknown"
	}
}

// typeByName indexes Type by the case-insensitive wire name a caller sends
// (a job request's repository.type field), built once from the String
// table above rather than duplicated.
var typeByName = map[string]Type{
	strings.ToLower(External.String()):         External,
	strings.ToLower(GitHub.String()):           GitHub,
	strings.ToLower(GitHubEnterprise.String()): GitHubEnterprise,
	strings.ToLower(Bitbucket.String()):        Bitbucket,
	strings.ToLower(CentralHosted.String()):    CentralHosted,
	strings.ToLower(CentralOnPrem.String()):    CentralOnPrem,
}

// ParseType resolves name (case-insensitive) to a Type, the inverse of
// String.
func ParseType(name string) (Type, error) {
	t, ok := typeByName[strings.ToLower(name)]
	if !ok {
		return External, fmt.Errorf("unrecognized provider type %q", name)
	}
	return t, nil
}

// MinAuthHeaderVersion is the minimum external-binary version that
// supports cmdline auth headers at all, shared by every provider that
// supports them.
const MinAuthHeaderVersion = "2.9"

// policyRow describes one provider variant's auth-header policy.
type policyRow struct {
	supportsAuthHeader bool
	requiresAuthHeader bool // strict: RequirementNotMet if unsupported, instead of falling back to URL embedding
	minVersion         string
	bearer             bool // true renders "bearer <token>", false renders "basic base64(u:p)"
}

var policyTable = map[Type]policyRow{
	External:         {supportsAuthHeader: false},
	GitHub:            {supportsAuthHeader: true, requiresAuthHeader: false, minVersion: MinAuthHeaderVersion},
	GitHubEnterprise:  {supportsAuthHeader: true, requiresAuthHeader: false, minVersion: MinAuthHeaderVersion},
	Bitbucket:         {supportsAuthHeader: true, requiresAuthHeader: false, minVersion: MinAuthHeaderVersion},
	CentralHosted:     {supportsAuthHeader: true, requiresAuthHeader: false, minVersion: MinAuthHeaderVersion},
	CentralOnPrem:     {supportsAuthHeader: true, requiresAuthHeader: true, minVersion: MinAuthHeaderVersion, bearer: true},
}

// SupportsAuthHeader reports whether this provider variant can use a
// cmdline auth header at all (as opposed to URL-embedded credentials).
func SupportsAuthHeader(t Type) bool {
	return policyTable[t].supportsAuthHeader
}

// RequiresAuthHeader reports whether this provider variant must use a
// cmdline auth header — falling back to URL embedding is not acceptable,
// and an unsupported binary version is a RequirementNotMet failure rather
// than a silent downgrade. Only on-prem central-hosted providers are
// strict; every other provider prefers the header but tolerates fallback.
func RequiresAuthHeader(t Type) bool {
	return policyTable[t].requiresAuthHeader
}

// MinimumVersion returns the minimum external-binary version this
// provider's auth-header support requires, and whether one applies at all.
func MinimumVersion(t Type) (string, bool) {
	row := policyTable[t]
	if !row.supportsAuthHeader {
		return "", false
	}
	return row.minVersion, true
}

// GenerateAuthHeader renders the header value for this provider variant
// given the resolved username/password (or, for bearer-style providers,
// an empty username and the JWT in password). Returns ("", false) for
// providers that never support a cmdline header.
func GenerateAuthHeader(t Type, username, password string) (string, bool) {
	row := policyTable[t]
	if !row.supportsAuthHeader {
		return "", false
	}
	if row.bearer {
		return urlutil.BearerAuthHeader(password), true
	}
	return urlutil.BasicAuthHeader(username, password), true
}

// MinLfsAuthHeaderVersion is the minimum binary version supporting an
// auth header for the LFS extension specifically, distinct from the
// core cmdline auth-header minimum.
const MinLfsAuthHeaderVersion = "2.1"

// SupportsLfsAuthHeader reports whether this provider variant's LFS
// extension can use a cmdline auth header. LFS follows the same
// per-provider support matrix as the core auth header.
func SupportsLfsAuthHeader(t Type) bool {
	return policyTable[t].supportsAuthHeader
}
