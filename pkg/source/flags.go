package source

import (
	"fmt"
	"net/url"
	"runtime"

	"github.com/forgeci/agent/pkg/git"
	"github.com/forgeci/agent/pkg/provider"
	"github.com/forgeci/agent/pkg/urlutil"
)

// authPlan is the resolved outcome of deciding how (or whether) to
// authenticate a fetch: either a cmdline auth header, or a
// credential-embedded remote URL, or neither (self-managed / no
// credential).
type authPlan struct {
	header       string // non-empty if a cmdline auth header should be used
	embedCreds   bool   // true if the remote URL should carry embedded credentials instead
	username     string
	password     string
}

// planAuth decides between the cmdline-auth-header and URL-embedding
// strategies for t, per the table in the auth-header rendering section:
// on-prem central-hosted providers require the header and fail
// RequirementNotMet if the binary is too old; every other provider
// prefers the header but falls back to URL embedding.
func planAuth(t provider.Type, cred Credential, binaryVersion string) (authPlan, error) {
	if cred.Kind == CredentialNone {
		return authPlan{}, nil
	}

	username, password := credentialParts(cred)

	min, hasMin := provider.MinimumVersion(t)
	supportsHeader := provider.SupportsAuthHeader(t) && hasMin
	if supportsHeader {
		ok, err := ensureVersionFn(binaryVersion, min, provider.RequiresAuthHeader(t))
		if err != nil {
			return authPlan{}, newError(RequirementNotMet, "Prepare", err)
		}
		if ok {
			header, _ := provider.GenerateAuthHeader(t, username, password)
			return authPlan{header: header, username: username, password: password}, nil
		}
		if provider.RequiresAuthHeader(t) {
			return authPlan{}, newError(RequirementNotMet, "Prepare", fmt.Errorf("binary version %s below required minimum %s", binaryVersion, min))
		}
	}

	return authPlan{embedCreds: true, username: username, password: password}, nil
}

// ensureVersionFn is a package variable so tests can stub version
// comparison without constructing a real binary probe.
var ensureVersionFn = func(actual, min string, strict bool) (bool, error) {
	return ensureVersionDefault(actual, min, strict)
}

func credentialParts(cred Credential) (string, string) {
	switch cred.Kind {
	case CredentialBearer:
		return "", cred.accessToken()
	case CredentialBasic:
		return cred.Username, cred.Password
	case CredentialOAuth:
		return "OAuth", cred.accessToken()
	default:
		return "", ""
	}
}

// fetchFlags builds the whitespace-joined "-c key=value" prefix used for
// the primary fetch/checkout invocations, per the per-invocation config
// flags table.
func fetchFlags(descriptor RepositoryDescriptor, plan authPlan, binaryVersion string, proxy ProxySettings, cert AgentCertificateBundle, systemConn SystemConnection, askpassPath string) []string {
	var flags []string

	if plan.header != "" {
		flags = append(flags, configFlag("http.extraheader", "AUTHORIZATION: "+plan.header)...)
	}
	flags = append(flags, networkFlags(descriptor, proxy, cert, systemConn, askpassPath)...)
	flags = append(flags, tlsBackendFlagForHost(binaryVersion)...)

	return flags
}

// lfsFlags builds the per-invocation "-c key=value" prefix for the LFS
// fetch step. LFS auth-header support follows its own minimum binary
// version (provider.MinLfsAuthHeaderVersion), independent of the core
// auth-header minimum fetchFlags checks. A binary too old for LFS
// headers gets no header flag here; since plan.header is only set when
// the auth plan chose the header over URL embedding, the remote URL
// resolveRemote returns then carries no credential either.
func lfsFlags(descriptor RepositoryDescriptor, plan authPlan, binaryVersion string, proxy ProxySettings, cert AgentCertificateBundle, systemConn SystemConnection, askpassPath string) []string {
	var flags []string

	if plan.header != "" && provider.SupportsLfsAuthHeader(descriptor.Type) {
		if ok, _ := ensureVersionFn(binaryVersion, provider.MinLfsAuthHeaderVersion, false); ok {
			flags = append(flags, configFlag("http.extraheader", "AUTHORIZATION: "+plan.header)...)
		}
	}
	flags = append(flags, networkFlags(descriptor, proxy, cert, systemConn, askpassPath)...)
	flags = append(flags, tlsBackendFlagForHost(binaryVersion)...)

	return flags
}

// networkFlags builds the proxy, TLS-verification, and client-certificate
// "-c key=value" entries shared by the primary fetch and the LFS fetch
// step, since both run against the same effective authority.
func networkFlags(descriptor RepositoryDescriptor, proxy ProxySettings, cert AgentCertificateBundle, systemConn SystemConnection, askpassPath string) []string {
	var flags []string

	if proxy.Address != "" && !proxy.IsBypassed(descriptor.URL) {
		proxyURL := proxy.Address
		if proxy.Username != "" {
			if embedded, err := urlutil.EmbedCredential(proxy.Address, proxy.Username, proxy.Password); err == nil {
				proxyURL = embedded
			}
		}
		flags = append(flags, configFlag("http.proxy", proxyURL)...)
	}
	if descriptor.AcceptUntrustedCerts {
		flags = append(flags, configFlag("http.sslVerify", "false")...)
	}
	if cert.CAFile != "" && sameAuthority(descriptor.URL, systemConn.URL) {
		flags = append(flags, configFlag("http.sslcainfo", cert.CAFile)...)
	}
	if cert.ClientCertFile != "" && sameAuthority(descriptor.URL, systemConn.URL) {
		flags = append(flags, configFlag("http.sslcert", cert.ClientCertFile)...)
		flags = append(flags, configFlag("http.sslkey", cert.ClientKeyFile)...)
		if cert.ClientKeyPassword != "" {
			flags = append(flags, configFlag("http.sslCertPasswordProtected", "true")...)
			if askpassPath != "" {
				flags = append(flags, configFlag("core.askpass", askpassPath)...)
			}
		}
	}

	return flags
}

// submoduleFlags builds the "-c key=value" prefix for the submodule
// phase: auth, CA, and client-cert entries are each keyed to the
// authority (scheme://host[:port]) of submoduleURL, so they apply to
// every submodule on that authority whatever its path. The caller passes
// the superproject's URL; submodules on another authority get none of
// these entries. http.sslbackend is not authority-scoped (it is a
// host-global override, like fetchFlags'), so it is appended unscoped
// same as there. Unlike fetchFlags, no http.proxy, http.sslVerify or
// http.sslCertPasswordProtected entry is included.
func submoduleFlags(submoduleURL string, plan authPlan, binaryVersion string, cert AgentCertificateBundle, systemConn SystemConnection, askpassPath string) ([]string, error) {
	var flags []string

	if plan.header != "" {
		key, err := urlutil.AuthorityScopedKey("http", submoduleURL, "extraheader")
		if err != nil {
			return nil, fmt.Errorf("scoping auth header: %w", err)
		}
		flags = append(flags, configFlag(key, "AUTHORIZATION: "+plan.header)...)
	}
	if cert.CAFile != "" && sameAuthority(submoduleURL, systemConn.URL) {
		key, err := urlutil.AuthorityScopedKey("http", submoduleURL, "sslcainfo")
		if err != nil {
			return nil, fmt.Errorf("scoping sslcainfo: %w", err)
		}
		flags = append(flags, configFlag(key, cert.CAFile)...)
	}
	if cert.ClientCertFile != "" && sameAuthority(submoduleURL, systemConn.URL) {
		certKey, err := urlutil.AuthorityScopedKey("http", submoduleURL, "sslcert")
		if err != nil {
			return nil, fmt.Errorf("scoping sslcert: %w", err)
		}
		keyKey, err := urlutil.AuthorityScopedKey("http", submoduleURL, "sslkey")
		if err != nil {
			return nil, fmt.Errorf("scoping sslkey: %w", err)
		}
		flags = append(flags, configFlag(certKey, cert.ClientCertFile)...)
		flags = append(flags, configFlag(keyKey, cert.ClientKeyFile)...)
		if cert.ClientKeyPassword != "" && askpassPath != "" {
			askpassKey, err := urlutil.AuthorityScopedKey("core", submoduleURL, "askpass")
			if err != nil {
				return nil, fmt.Errorf("scoping askpass: %w", err)
			}
			flags = append(flags, configFlag(askpassKey, askpassPath)...)
		}
	}

	flags = append(flags, tlsBackendFlagForHost(binaryVersion)...)

	return flags, nil
}

// configFlag renders one "-c key=value" pair as the two argv entries the
// external binary expects: "-c" followed by "key=value".
func configFlag(key, value string) []string {
	return []string{"-c", fmt.Sprintf("%s=%s", key, value)}
}

// sameAuthority reports whether a and b share scheme and host, the test
// the spec uses to decide whether control-plane TLS material applies to
// a given repository.
func sameAuthority(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	pa, errA := url.Parse(a)
	pb, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return pa.Scheme == pb.Scheme && pa.Host == pb.Host
}

// tlsBackendFlag returns the "-c http.sslbackend=schannel" flag when
// running on the operating system whose default TLS stack is not
// OpenSSL and the external binary is new enough to honor the override,
// per the binary-selection rule in the external-binary adapter section.
// windowsRuntime is injected so tests can exercise both branches without
// depending on the actual host OS.
func tlsBackendFlag(windowsRuntime bool, binaryVersion string) []string {
	if !windowsRuntime {
		return nil
	}
	if ok, _ := ensureVersionFn(binaryVersion, git.MinTLSBackendVersion, false); !ok {
		return nil
	}
	return configFlag("http.sslbackend", "schannel")
}

// nonOpenSSLTLSOS reports whether the current OS's default TLS stack is
// not OpenSSL. Windows ships with schannel; every other OS this module
// runs on uses OpenSSL. This is the same condition the binary-selection
// rule uses to decide between the path-resolved and agent-bundled git
// binary.
func nonOpenSSLTLSOS() bool {
	return runtime.GOOS == "windows"
}

// tlsBackendFlagForHost is tlsBackendFlag bound to the actual host OS,
// the form every real call site uses; tests exercise tlsBackendFlag
// directly to cover both OS branches.
func tlsBackendFlagForHost(binaryVersion string) []string {
	return tlsBackendFlag(nonOpenSSLTLSOS(), binaryVersion)
}
