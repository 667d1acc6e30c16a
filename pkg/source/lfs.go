package source

import "strings"

// DeriveLFSURL appends the LFS info path to a repository URL: "/info/lfs"
// if the path already ends in ".git", else ".git/info/lfs". This is a
// plain string append, not a URL-aware join, which mis-handles a URL
// carrying a query string or fragment — the ambiguity is inherited
// unresolved from the source this module's behavior is pinned to, see
// DESIGN.md.
func DeriveLFSURL(repoURL string) string {
	if strings.HasSuffix(repoURL, ".git") {
		return repoURL + "/info/lfs"
	}
	return repoURL + ".git/info/lfs"
}
