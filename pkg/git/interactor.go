package git

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// interactor exposes one method per git subcommand this module needs,
// each taking the subcommand's typed arguments plus an optional leading
// extraArgs slice spliced in before the subcommand verb — this is how
// "-c key=value" credentials are injected per invocation without ever
// being persisted to the on-disk config. Grounded on
// prow/git/v2/interactor_test.go's interactor type (executor, remote,
// dir, logger fields; one Go method per git verb), narrowed to the
// read-only operation set a source-acquisition orchestrator needs
// ("init", "remote add/set-url", "config", "fetch", "checkout", "clean",
// "reset", "submodule", "lfs") instead of the reference's
// merge/rebase-oriented set.
type interactor struct {
	executor executor
	remote   RemoteResolver
	dir      string
	logger   *logrus.Entry
}

// NewInteractor returns an interactor running git commands in dir against
// the git binary exec'd by executor, resolving its remote lazily via
// remote.
func NewInteractor(executor executor, remote RemoteResolver, dir string, logger *logrus.Entry) *interactor {
	return &interactor{executor: executor, remote: remote, dir: dir, logger: logger}
}

// Directory returns the working directory this interactor operates in.
func (i *interactor) Directory() string {
	return i.dir
}

func (i *interactor) run(extraArgs []string, args ...string) ([]byte, error) {
	full := make([]string, 0, len(extraArgs)+len(args))
	full = append(full, extraArgs...)
	full = append(full, args...)
	return i.executor.Run(full...)
}

// Init runs "git init", with extraArgs (typically "-c" pairs) spliced
// before the verb.
func (i *interactor) Init(extraArgs ...string) error {
	if _, err := i.run(extraArgs, "init"); err != nil {
		return fmt.Errorf("error initializing repo: %w", err)
	}
	return nil
}

// RemoteAdd runs "git remote add <name> <url>".
func (i *interactor) RemoteAdd(name, url string) error {
	if _, err := i.run(nil, "remote", "add", name, url); err != nil {
		return fmt.Errorf("error adding remote %q: %w", name, err)
	}
	return nil
}

// RemoteSetURL runs "git remote set-url <name> <url>".
func (i *interactor) RemoteSetURL(name, url string) error {
	if _, err := i.run(nil, "remote", "set-url", name, url); err != nil {
		return fmt.Errorf("error setting remote %q url: %w", name, err)
	}
	return nil
}

// RemoteSetPushURL runs "git remote set-url --push <name> <url>".
func (i *interactor) RemoteSetPushURL(name, url string) error {
	if _, err := i.run(nil, "remote", "set-url", "--push", name, url); err != nil {
		return fmt.Errorf("error setting remote %q push url: %w", name, err)
	}
	return nil
}

// GetFetchURL runs "git remote get-url <name>" and returns the resolved
// URL, trimmed of trailing whitespace.
func (i *interactor) GetFetchURL(name string) (string, error) {
	out, err := i.run(nil, "remote", "get-url", name)
	if err != nil {
		return "", fmt.Errorf("error getting remote %q url: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ConfigGet runs "git config --get <key>" and returns the configured
// value, trimmed of trailing whitespace.
func (i *interactor) ConfigGet(key string) (string, error) {
	out, err := i.run(nil, "config", "--get", key)
	if err != nil {
		return "", fmt.Errorf("error getting config %q: %w", key, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ConfigSet runs "git config <key> <value>".
func (i *interactor) ConfigSet(key, value string) error {
	if _, err := i.run(nil, "config", key, value); err != nil {
		return fmt.Errorf("error setting config %q: %w", key, err)
	}
	return nil
}

// ConfigUnset runs "git config --unset <key>".
func (i *interactor) ConfigUnset(key string) error {
	if _, err := i.run(nil, "config", "--unset", key); err != nil {
		return fmt.Errorf("error unsetting config %q: %w", key, err)
	}
	return nil
}

// ConfigExists reports whether key is set, treating any error from
// ConfigGet as "does not exist" rather than propagating it — git exits
// nonzero for a missing key, which is the expected case here, not a
// failure.
func (i *interactor) ConfigExists(key string) bool {
	_, err := i.ConfigGet(key)
	return err == nil
}

// DisableAutoGC runs "git config gc.auto 0". Failure here is
// warned-only by the caller, not fatal: an autogc run mid-fetch is
// wasteful, not corrupting.
func (i *interactor) DisableAutoGC() error {
	return i.ConfigSet("gc.auto", "0")
}

// Fetch runs "git fetch <remote> <refspecs...>" against the resolved
// remote, with extraArgs spliced before the verb and depth appended as
// "--depth=<depth>" when depth > 0.
func (i *interactor) Fetch(extraArgs []string, depth int, refspecs ...string) error {
	remote, err := i.remote()
	if err != nil {
		return fmt.Errorf("could not resolve remote: %w", err)
	}
	args := []string{"fetch"}
	if depth > 0 {
		args = append(args, "--depth="+strconv.Itoa(depth))
	}
	args = append(args, remote)
	args = append(args, refspecs...)
	if _, err := i.run(extraArgs, args...); err != nil {
		return fmt.Errorf("error fetching: %w", err)
	}
	return nil
}

// Checkout runs "git checkout <commitlike>".
func (i *interactor) Checkout(commitlike string) error {
	if _, err := i.run(nil, "checkout", commitlike); err != nil {
		return fmt.Errorf("error checking out %q: %w", commitlike, err)
	}
	return nil
}

// Clean runs "git clean -fdx".
func (i *interactor) Clean() error {
	if _, err := i.run(nil, "clean", "-fdx"); err != nil {
		return fmt.Errorf("error cleaning: %w", err)
	}
	return nil
}

// Reset runs "git reset <args...>", e.g. Reset("--hard") or
// Reset("--hard", "HEAD").
func (i *interactor) Reset(args ...string) error {
	full := append([]string{"reset"}, args...)
	if _, err := i.run(nil, full...); err != nil {
		return fmt.Errorf("error resetting: %w", err)
	}
	return nil
}

// SubmoduleSync runs "git submodule sync --recursive", with extraArgs
// spliced before the verb for authority-scoped credential injection.
func (i *interactor) SubmoduleSync(extraArgs ...string) error {
	if _, err := i.run(extraArgs, "submodule", "sync", "--recursive"); err != nil {
		return fmt.Errorf("error syncing submodules: %w", err)
	}
	return nil
}

// SubmoduleUpdate runs "git submodule update --init --recursive", with
// extraArgs spliced before the verb and "--depth=<depth>" appended when
// depth > 0.
func (i *interactor) SubmoduleUpdate(extraArgs []string, depth int) error {
	args := []string{"submodule", "update", "--init", "--recursive"}
	if depth > 0 {
		args = append(args, "--depth="+strconv.Itoa(depth))
	}
	if _, err := i.run(extraArgs, args...); err != nil {
		return fmt.Errorf("error updating submodules: %w", err)
	}
	return nil
}

// SubmoduleForEach runs "git submodule foreach --recursive <command>",
// used to run a reset/clean over every submodule during reconciliation.
func (i *interactor) SubmoduleForEach(command string) error {
	if _, err := i.run(nil, "submodule", "foreach", "--recursive", command); err != nil {
		return fmt.Errorf("error iterating submodules: %w", err)
	}
	return nil
}

// LFSInstall runs "git lfs install --local".
func (i *interactor) LFSInstall() error {
	if _, err := i.run(nil, "lfs", "install", "--local"); err != nil {
		return fmt.Errorf("error installing lfs: %w", err)
	}
	return nil
}

// LFSFetch runs "git lfs fetch <remote> <ref>", with extraArgs spliced
// before the verb. ref is the checkout target about to be checked out,
// not whatever is currently checked out, since LFS fetch runs before
// checkout.
func (i *interactor) LFSFetch(extraArgs []string, ref string) error {
	remote, err := i.remote()
	if err != nil {
		return fmt.Errorf("could not resolve remote: %w", err)
	}
	if _, err := i.run(extraArgs, "lfs", "fetch", remote, ref); err != nil {
		return fmt.Errorf("error fetching lfs objects: %w", err)
	}
	return nil
}

// LFSLogs runs "git lfs logs last" and returns its output, used to
// surface LFS transfer diagnostics without re-running the transfer.
func (i *interactor) LFSLogs() (string, error) {
	out, err := i.run(nil, "lfs", "logs", "last")
	if err != nil {
		return "", fmt.Errorf("error reading lfs logs: %w", err)
	}
	return string(out), nil
}
