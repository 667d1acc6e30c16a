package worker

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/forgeci/agent/pkg/agentloop"
	"github.com/forgeci/agent/pkg/source"
)

// convertCredential maps a RepoRequest's wire-shape credential fields onto
// source.Credential. CredentialKind is matched case-insensitively, the
// same convention the run loop's message-type dispatch uses.
func convertCredential(repo agentloop.RepoRequest) (source.Credential, error) {
	switch {
	case strings.EqualFold(repo.CredentialKind, "none") || repo.CredentialKind == "":
		return source.Credential{Kind: source.CredentialNone}, nil

	case strings.EqualFold(repo.CredentialKind, "basic"):
		return source.Credential{
			Kind:     source.CredentialBasic,
			Username: repo.Username,
			Password: repo.Password,
		}, nil

	case strings.EqualFold(repo.CredentialKind, "bearer"):
		return source.Credential{
			Kind:       source.CredentialBearer,
			OAuthToken: &oauth2.Token{AccessToken: repo.AccessToken},
		}, nil

	case strings.EqualFold(repo.CredentialKind, "oauth"):
		return source.Credential{
			Kind:       source.CredentialOAuth,
			OAuthToken: &oauth2.Token{AccessToken: repo.AccessToken},
		}, nil

	default:
		return source.Credential{}, fmt.Errorf("unrecognized credential kind %q", repo.CredentialKind)
	}
}
