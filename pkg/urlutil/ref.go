package urlutil

import "strings"

const (
	remoteOriginPrefix = "refs/remotes/origin/"
	remotePullPrefix   = "refs/remotes/pull/"
	headsPrefix        = "refs/heads/"
	pullPrefix         = "refs/pull/"
)

// ToRemoteRef normalizes branch into its remote-tracking form: empty or
// "master" becomes "refs/remotes/origin/master"; "refs/heads/X" becomes
// "refs/remotes/origin/X"; "refs/pull/X" becomes "refs/remotes/pull/X";
// anything else (already a remote ref, a bare commit-ish, etc.) is returned
// unchanged, which is what makes the function idempotent.
func ToRemoteRef(branch string) string {
	switch {
	case branch == "" || branch == "master":
		return remoteOriginPrefix + "master"
	case strings.HasPrefix(branch, headsPrefix):
		return remoteOriginPrefix + strings.TrimPrefix(branch, headsPrefix)
	case strings.HasPrefix(branch, pullPrefix):
		return remotePullPrefix + strings.TrimPrefix(branch, pullPrefix)
	default:
		return branch
	}
}

// IsPullRequestRef reports whether ref names a server-synthesized
// pull-request ref, under either its canonical or remote-tracking form.
func IsPullRequestRef(ref string) bool {
	return strings.HasPrefix(ref, pullPrefix) || strings.HasPrefix(ref, remotePullPrefix)
}
