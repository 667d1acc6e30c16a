package source

import "github.com/forgeci/agent/pkg/git"

// ensureVersionDefault delegates to pkg/git's version comparison. It is
// the default behind ensureVersionFn, the package variable tests replace
// to stub version comparison in planAuth, lfsFlags and tlsBackendFlag.
func ensureVersionDefault(actual, min string, strict bool) (bool, error) {
	return git.EnsureVersion(actual, min, strict)
}
