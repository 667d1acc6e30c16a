// Package source implements the acquisition orchestrator: the state
// machine that reconciles the on-disk state of a working tree with a
// requested repository descriptor, using pkg/git as its external-binary
// adapter, pkg/provider for per-provider auth policy, and pkg/urlutil for
// credential embedding. Grounded on the reference stack's
// prow/pod-utils/clone package (the closest pack analog for an
// orchestrator that turns a declarative ref request into a working tree
// on disk), generalized to the provider-variant, credential-aware,
// reconcile-vs-purge state machine this module requires.
package source

import (
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/forgeci/agent/pkg/provider"
)

// RepositoryDescriptor is the requested state for one acquisition.
type RepositoryDescriptor struct {
	Alias      string
	Type       provider.Type
	URL        string
	Branch     string
	Commit     string
	TargetPath string

	Clean                bool
	Submodules           bool
	NestedSubmodules     bool
	AcceptUntrustedCerts bool
	FetchDepth           int
	LFS                  bool
	ExposeCredentials    bool
	OnPremHosted         bool
}

// CredentialKind tags the Credential union.
type CredentialKind int

const (
	CredentialNone CredentialKind = iota
	CredentialBearer
	CredentialBasic
	CredentialOAuth
)

// Credential is a tagged union over the four credential shapes a
// descriptor may carry. Username/Password are only meaningful for
// CredentialBasic; OAuthToken is only meaningful for CredentialBearer and
// CredentialOAuth, modeled on oauth2.Token the way the reference stack's
// GitHub clients carry PAT/GitHub App tokens.
type Credential struct {
	Kind       CredentialKind
	Username   string
	Password   string
	OAuthToken *oauth2.Token
}

// accessToken returns the bearer token carried by OAuthToken, or "" if
// none is set.
func (c Credential) accessToken() string {
	if c.OAuthToken == nil {
		return ""
	}
	return c.OAuthToken.AccessToken
}

// AgentCertificateBundle names optional mutual-TLS material, relevant
// only when the repository shares scheme-and-host with the configured
// control-plane endpoint.
type AgentCertificateBundle struct {
	CAFile               string
	ClientCertFile       string
	ClientKeyFile        string
	ClientKeyPassword    string
	SkipServerValidation bool
}

// ProxySettings configures an HTTP(S) proxy for the external binary.
type ProxySettings struct {
	Address    string
	Username   string
	Password   string
	BypassList []string
}

// IsBypassed reports whether rawURL's host matches an entry in
// p.BypassList, in which case the proxy must not be used for it. A
// bypass entry matches the host exactly or as a domain suffix (so
// "example.com" also bypasses "git.example.com").
func (p ProxySettings) IsBypassed(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	for _, entry := range p.BypassList {
		if entry == "" {
			continue
		}
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// WorkingCopyState is the derived state of targetPath observed during
// Probe, never persisted.
type WorkingCopyState int

const (
	// Absent means the directory is missing or empty.
	Absent WorkingCopyState = iota
	// Foreign means the directory exists but its recorded origin does
	// not match the requested URL.
	Foreign
	// Local means the directory's recorded origin matches the
	// requested URL.
	Local
	// Locked means the directory matches but an index lock file is
	// present from an interrupted prior operation.
	Locked
)

func (s WorkingCopyState) String() string {
	switch s {
	case Absent:
		return "Absent"
	case Foreign:
		return "Foreign"
	case Local:
		return "Local"
	case Locked:
		return "Locked"
	default:
		return "Unknown"
	}
}

// Result is returned by a successful Acquire.
type Result struct {
	Descriptor  RepositoryDescriptor
	CheckoutRef string
}

// LogSink is the host-provided logging boundary. setSecret registers a
// string with the acquisition's secret registry rather than writing a log
// line itself.
type LogSink interface {
	Output(line string)
	Debug(line string)
	Warning(line string)
	Error(line string)
	Progress(percent int, message string)
	SetSecret(s string)
	Command(line string)
}
