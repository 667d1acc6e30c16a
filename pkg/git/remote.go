package git

import (
	"fmt"

	"github.com/forgeci/agent/pkg/urlutil"
)

// RemoteResolver lazily resolves a remote URL, re-resolved on every call so
// that a rotated credential is picked up on the next fetch without
// reconstructing the interactor. Mirrors prow/git/v2/remote_test.go's
// RemoteResolver type.
type RemoteResolver func() (string, error)

// LiteralRemote returns a RemoteResolver that always resolves to url,
// unchanged. Used for repositories with no credential to embed.
func LiteralRemote(url string) RemoteResolver {
	return func() (string, error) {
		return url, nil
	}
}

// CredentialedRemote returns a RemoteResolver embedding username/password
// into baseURL's userinfo component on every call. This module only
// supports HTTP(S) remotes; unlike the reference stack's
// sshRemoteResolverFactory, there is no SSH resolver variant here —
// non-HTTP(S) transports are out of scope.
func CredentialedRemote(baseURL, username, password string) RemoteResolver {
	return func() (string, error) {
		embedded, err := urlutil.EmbedCredential(baseURL, username, password)
		if err != nil {
			return "", fmt.Errorf("could not embed credential: %w", err)
		}
		return embedded, nil
	}
}
