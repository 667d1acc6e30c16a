package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/forgeci/agent/pkg/git"
	"github.com/forgeci/agent/pkg/secrets"
	"github.com/forgeci/agent/pkg/urlutil"
)

const (
	originRemote = "origin"
	indexLockRel = ".git/index.lock"
)

// acquisition carries every piece of state one Acquire call threads
// through its phases. It is constructed fresh per call and discarded at
// completion, matching the data model's lifecycle rule that everything
// but the SecretRegistry is scoped to a single acquisition.
type acquisition struct {
	ctx context.Context

	descriptor RepositoryDescriptor
	credential Credential
	cert       AgentCertificateBundle
	proxy      ProxySettings
	systemConn SystemConnection
	env        Environment

	registry *secrets.Registry
	sink     LogSink
	logger   *logrus.Entry

	config *ConfigModification

	interactor  interactorAPI
	binaryVer   string
	authPlan    authPlan
	askpassPath string
}

// interactorAPI is the subset of *git interactor this package depends
// on, narrowed to an interface so orchestrator tests can substitute a
// fake without spawning git.
type interactorAPI interface {
	Init(extraArgs ...string) error
	RemoteAdd(name, url string) error
	RemoteSetURL(name, url string) error
	RemoteSetPushURL(name, url string) error
	GetFetchURL(name string) (string, error)
	ConfigGet(key string) (string, error)
	ConfigSet(key, value string) error
	ConfigUnset(key string) error
	ConfigExists(key string) bool
	DisableAutoGC() error
	Fetch(extraArgs []string, depth int, refspecs ...string) error
	Checkout(commitlike string) error
	Clean() error
	Reset(args ...string) error
	SubmoduleSync(extraArgs ...string) error
	SubmoduleUpdate(extraArgs []string, depth int) error
	SubmoduleForEach(command string) error
	LFSInstall() error
	LFSFetch(extraArgs []string, ref string) error
	LFSLogs() (string, error)
}

// Acquire runs the full acquisition state machine for descriptor,
// producing a working tree at descriptor.TargetPath positioned at the
// requested revision. newInteractor lets callers (and tests) control how
// the git adapter is constructed; production callers pass
// DefaultInteractorFactory.
func Acquire(ctx context.Context, descriptor RepositoryDescriptor, credential Credential, cert AgentCertificateBundle, proxy ProxySettings, systemConn SystemConnection, env Environment, registry *secrets.Registry, sink LogSink, newInteractor InteractorFactory) (*Result, error) {
	a := &acquisition{
		ctx:        ctx,
		descriptor: descriptor,
		credential: credential,
		cert:       cert,
		proxy:      proxy,
		systemConn: systemConn,
		env:        env,
		registry:   registry,
		sink:       sink,
		logger:     logrus.WithField("alias", descriptor.Alias),
		config:     NewConfigModification(),
	}

	if err := a.validate(); err != nil {
		return nil, err
	}

	matches, err := a.probe(newInteractor)
	if err != nil {
		return nil, err
	}

	if !matches {
		if err := a.purge(); err != nil {
			return nil, err
		}
		if err := a.initializeFresh(newInteractor); err != nil {
			return nil, err
		}
	} else {
		a.interactor = newInteractor(descriptor.TargetPath, a.resolveRemote, a.logger)
		if err := a.reconcile(newInteractor); err != nil {
			return nil, err
		}
	}

	if err := a.checkCancelled(); err != nil {
		return nil, err
	}

	if err := a.prepare(); err != nil {
		return nil, err
	}
	if err := a.checkCancelled(); err != nil {
		return nil, err
	}

	if err := a.fetch(); err != nil {
		return nil, err
	}
	if err := a.checkCancelled(); err != nil {
		return nil, err
	}

	target, err := a.resolveCheckout()
	if err != nil {
		return nil, err
	}
	if err := a.checkCancelled(); err != nil {
		return nil, err
	}

	if descriptor.Submodules {
		if err := a.submodules(); err != nil {
			return nil, err
		}
	}
	if err := a.checkCancelled(); err != nil {
		return nil, err
	}

	if err := a.finalize(); err != nil {
		return nil, err
	}

	return &Result{Descriptor: descriptor, CheckoutRef: target}, nil
}

func (a *acquisition) checkCancelled() error {
	if a.ctx.Err() != nil {
		return newError(Cancelled, "checkpoint", a.ctx.Err())
	}
	return nil
}

func (a *acquisition) validate() error {
	if a.descriptor.URL == "" {
		return newError(BadInput, "Start", fmt.Errorf("url is required"))
	}
	if a.descriptor.FetchDepth < 0 {
		return newError(BadInput, "Start", fmt.Errorf("fetchDepth must be >= 0"))
	}
	if a.descriptor.TargetPath == "" || !filepath.IsAbs(a.descriptor.TargetPath) {
		return newError(BadInput, "Start", fmt.Errorf("targetPath must be an absolute path"))
	}
	return nil
}

// probe inspects targetPath and reports whether its recorded origin
// matches descriptor.URL (Reconcile) as opposed to being absent or
// foreign (Purge).
func (a *acquisition) probe(newInteractor InteractorFactory) (bool, error) {
	entries, err := os.ReadDir(a.descriptor.TargetPath)
	if err != nil || len(entries) == 0 {
		return false, nil
	}

	probeInteractor := newInteractor(a.descriptor.TargetPath, nil, a.logger)
	fetchURL, err := probeInteractor.GetFetchURL(originRemote)
	if err != nil {
		return false, nil
	}
	sanitized, err := urlutil.StripCredential(fetchURL)
	if err != nil {
		return false, nil
	}
	return sanitized == a.descriptor.URL, nil
}

// purge recursively deletes targetPath, checking for cancellation
// between each top-level entry so a large tree deletion stays
// cancellation-responsive.
func (a *acquisition) purge() error {
	entries, err := os.ReadDir(a.descriptor.TargetPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return newError(FileSystemFailed, "Purge", err)
	}
	for _, entry := range entries {
		if err := a.checkCancelled(); err != nil {
			return err
		}
		if err := os.RemoveAll(filepath.Join(a.descriptor.TargetPath, entry.Name())); err != nil {
			return newError(FileSystemFailed, "Purge", err)
		}
	}
	return nil
}

// initializeFresh creates targetPath, inits a new working tree in it, and
// points origin at descriptor.URL.
func (a *acquisition) initializeFresh(newInteractor InteractorFactory) error {
	if err := os.MkdirAll(a.descriptor.TargetPath, 0755); err != nil {
		return newError(FileSystemFailed, "Initialize", err)
	}
	a.interactor = newInteractor(a.descriptor.TargetPath, a.resolveRemote, a.logger)
	if err := a.interactor.Init(); err != nil {
		return newError(ExternalBinaryFailed, "Initialize", err)
	}
	if err := a.interactor.RemoteAdd(originRemote, a.descriptor.URL); err != nil {
		return newError(ExternalBinaryFailed, "Initialize", err)
	}
	return nil
}

// reconcile handles an existing matching working tree: clears a stale
// index lock (logged, not fatal), and either soft-cleans it in place or
// falls back to a full purge-and-reinitialize on any soft-clean failure.
func (a *acquisition) reconcile(newInteractor InteractorFactory) error {
	lockPath := filepath.Join(a.descriptor.TargetPath, indexLockRel)
	if _, err := os.Stat(lockPath); err == nil {
		if err := os.Remove(lockPath); err != nil {
			a.sink.Warning(fmt.Sprintf("could not remove stale index lock: %v", err))
		}
	}

	if !a.descriptor.Clean {
		return nil
	}

	if err := a.softClean(); err != nil {
		a.sink.Warning(fmt.Sprintf("soft clean failed, falling back to purge: %v", err))
		if err := a.purge(); err != nil {
			return err
		}
		return a.initializeFresh(newInteractor)
	}
	return nil
}

// softClean runs clean/reset (and, if submodules are requested, the
// submodule equivalents), aborting on the first failure so the caller
// can fall back to Purge.
func (a *acquisition) softClean() error {
	if err := a.interactor.Clean(); err != nil {
		return err
	}
	if err := a.interactor.Reset("--hard", "HEAD"); err != nil {
		return err
	}
	if a.descriptor.Submodules {
		if err := a.interactor.SubmoduleForEach("clean -fdx"); err != nil {
			return err
		}
		if err := a.interactor.SubmoduleForEach("reset --hard HEAD"); err != nil {
			return err
		}
	}
	return nil
}

// prepare disables autogc, scrubs stale credential-bearing config keys
// from a prior run, and resolves the auth strategy for this acquisition.
func (a *acquisition) prepare() error {
	if err := a.interactor.DisableAutoGC(); err != nil {
		a.sink.Warning(fmt.Sprintf("could not disable autogc: %v", err))
	}

	extraheaderKey, err := urlutil.AuthorityScopedKey("http", a.descriptor.URL, "extraheader")
	if err == nil {
		_ = a.interactor.ConfigUnset(extraheaderKey)
	}
	_ = a.interactor.ConfigUnset("http.proxy")

	binaryVersion, err := git.BinaryVersion(a.rawExecutor())
	if err != nil {
		return newError(ExternalBinaryFailed, "Prepare", err)
	}
	a.binaryVer = binaryVersion

	// selfManageGitCreds is a top-level mode flag, not a credential
	// variant: every auth-header / URL-embedding / config-cleanup path is
	// skipped outright rather than modeled as a no-credential provider.
	if !a.env.SelfManageGitCreds {
		plan, err := planAuth(a.descriptor.Type, a.credential, a.binaryVer)
		if err != nil {
			return err
		}
		a.authPlan = plan
		a.registerAuthSecrets()

		if plan.header != "" {
			a.registry.Add(plan.header)
		}
	}

	if a.cert.ClientKeyPassword != "" {
		path, err := WriteAskpassHelper(a.env.TempDir, a.cert.ClientKeyPassword)
		if err != nil {
			return newError(FileSystemFailed, "Prepare", err)
		}
		a.askpassPath = path
		a.registry.Add(a.cert.ClientKeyPassword)
	}

	return nil
}

func (a *acquisition) registerAuthSecrets() {
	if a.authPlan.username != "" {
		a.registry.Add(a.authPlan.username)
	}
	if a.authPlan.password != "" {
		a.registry.Add(a.authPlan.password)
	}
}

// fetch runs the primary fetch, adding pull-request refspecs when the
// requested branch is a server-synthesized PR ref.
func (a *acquisition) fetch() error {
	flags := fetchFlags(a.descriptor, a.authPlan, a.binaryVer, a.proxy, a.cert, a.systemConn, a.askpassPath)

	var refspecs []string
	if urlutil.IsPullRequestRef(a.descriptor.Branch) {
		remoteForm := urlutil.ToRemoteRef(a.descriptor.Branch)
		refspecs = []string{
			"+refs/heads/*:refs/remotes/origin/*",
			fmt.Sprintf("+%s:%s", a.descriptor.Branch, remoteForm),
		}
	}

	if err := a.interactor.Fetch(flags, a.descriptor.FetchDepth, refspecs...); err != nil {
		return newError(ExternalBinaryFailed, "Fetch", err)
	}
	return nil
}

// resolveCheckout computes the checkout target, optionally pulls LFS
// objects first, and checks the target out.
func (a *acquisition) resolveCheckout() (string, error) {
	target := a.descriptor.Commit
	if urlutil.IsPullRequestRef(a.descriptor.Branch) || a.descriptor.Commit == "" {
		target = urlutil.ToRemoteRef(a.descriptor.Branch)
	}

	if a.descriptor.LFS {
		if err := a.interactor.LFSInstall(); err != nil {
			return "", newError(ExternalBinaryFailed, "ResolveCheckout", err)
		}
		flags := lfsFlags(a.descriptor, a.authPlan, a.binaryVer, a.proxy, a.cert, a.systemConn, a.askpassPath)
		if err := a.interactor.LFSFetch(flags, target); err != nil {
			logs, _ := a.interactor.LFSLogs()
			return "", newError(ExternalBinaryFailed, "ResolveCheckout", fmt.Errorf("lfs fetch failed: %w (logs: %s)", err, logs))
		}
	}

	if err := a.interactor.Checkout(target); err != nil {
		if a.descriptor.FetchDepth > 0 {
			a.sink.Warning(fmt.Sprintf("checkout failed with fetch depth %d; a shallow clone may be missing required history", a.descriptor.FetchDepth))
		}
		return "", newError(ExternalBinaryFailed, "ResolveCheckout", err)
	}

	return target, nil
}

// submodules syncs and updates submodules, re-applying the auth/CA/
// client-cert config scoped to the repository URL's authority.
func (a *acquisition) submodules() error {
	flags, err := submoduleFlags(a.descriptor.URL, a.authPlan, a.binaryVer, a.cert, a.systemConn, a.askpassPath)
	if err != nil {
		return newError(BadInput, "Submodules", err)
	}

	if err := a.interactor.SubmoduleSync(flags...); err != nil {
		return newError(ExternalBinaryFailed, "Submodules", err)
	}
	if err := a.interactor.SubmoduleUpdate(flags, a.descriptor.FetchDepth); err != nil {
		return newError(ExternalBinaryFailed, "Submodules", err)
	}
	return nil
}

// finalize either persists the injected credential configuration
// (exposeCredentials) or scrubs it from disk, and removes the askpass
// helper unless credentials are being exposed.
func (a *acquisition) finalize() error {
	if a.descriptor.ExposeCredentials {
		return a.persistCredentials()
	}
	return a.scrubCredentials()
}

func (a *acquisition) persistCredentials() error {
	if a.authPlan.header != "" {
		key, err := urlutil.AuthorityScopedKey("http", a.descriptor.URL, "extraheader")
		if err == nil {
			if err := a.interactor.ConfigSet(key, "AUTHORIZATION: "+a.authPlan.header); err == nil {
				a.config.Record(key, "AUTHORIZATION: "+a.authPlan.header)
			}
		}
	}
	if a.descriptor.AcceptUntrustedCerts {
		if err := a.interactor.ConfigSet("http.sslVerify", "false"); err == nil {
			a.config.Record("http.sslVerify", "false")
		}
	}
	return nil
}

func (a *acquisition) scrubCredentials() error {
	if a.authPlan.embedCreds {
		sanitized, err := urlutil.StripCredential(a.descriptor.URL)
		if err == nil {
			setErr := a.interactor.RemoteSetURL(originRemote, sanitized)
			pushErr := a.interactor.RemoteSetPushURL(originRemote, sanitized)
			if setErr != nil || pushErr != nil {
				a.textuallyScrubRemoteURL(sanitized)
			}
		}
	}

	_ = a.interactor.ConfigUnset("remote.origin.lfsurl")
	_ = a.interactor.ConfigUnset("remote.origin.lfspushurl")

	if a.askpassPath != "" {
		if err := RemoveAskpassHelper(a.askpassPath); err != nil {
			a.sink.Warning(fmt.Sprintf("could not remove askpass helper: %v", err))
		}
	}
	return nil
}

// textuallyScrubRemoteURL is the fallback step when "remote set-url"
// (or its --push form) fails to strip the credential-embedded origin
// URL: it reads the on-disk git config and replaces every literal
// occurrence of the credential-embedded URL with sanitized, since a
// partially-written secret must never remain.
func (a *acquisition) textuallyScrubRemoteURL(sanitized string) {
	embedded, err := a.resolveRemote()
	if err != nil {
		a.sink.Warning(fmt.Sprintf("could not resolve credential-embedded url for textual scrub: %v", err))
		return
	}
	configPath := filepath.Join(a.descriptor.TargetPath, ".git", "config")
	if err := ReplaceURL(configPath, embedded, sanitized); err != nil {
		a.sink.Warning(fmt.Sprintf("could not textually scrub credential-embedded url: %v", err))
	}
}

// resolveRemote is the RemoteResolver passed to this acquisition's
// interactor. It reads a.authPlan lazily, so it returns the
// credential-embedded form once Prepare has run even though the
// interactor is constructed before Prepare decides the auth strategy.
func (a *acquisition) resolveRemote() (string, error) {
	if a.authPlan.embedCreds {
		return urlutil.EmbedCredential(a.descriptor.URL, a.authPlan.username, a.authPlan.password)
	}
	return a.descriptor.URL, nil
}

func (a *acquisition) censor() git.Censor {
	return func(content []byte) []byte {
		return []byte(a.registry.Mask(string(content)))
	}
}

// gitBinary implements the binary-selection rule: on the operating
// system whose default TLS stack is not OpenSSL, prefer the
// agent-bundled binary unless configuration requests preferFromPath;
// on all other systems, always use the path-resolved binary. Only the
// version probe in prepare runs through this binary; every other git
// subcommand runs through the binary the InteractorFactory was built with.
func (a *acquisition) gitBinary() string {
	if nonOpenSSLTLSOS() && !a.env.PreferGitFromPath && a.env.BundledGitBinary != "" {
		return a.env.BundledGitBinary
	}
	if a.env.GitBinary != "" {
		return a.env.GitBinary
	}
	return "git"
}

func (a *acquisition) rawExecutor() interface {
	Run(args ...string) ([]byte, error)
} {
	return git.NewCensoringExecutor(a.descriptor.TargetPath, a.gitBinary(), a.censor(), a.logger)
}

// InteractorFactory constructs the git adapter for a working directory.
// remote is the resolver the interactor's Fetch/LFSFetch calls use; it is
// nil only for the probe interactor, which never resolves the remote.
type InteractorFactory func(dir string, remote git.RemoteResolver, logger *logrus.Entry) interactorAPI

// DefaultInteractorFactory builds a real git-backed interactor rooted at
// dir, its remote resolved via resolveRemote so credential embedding
// reflects the acquisition's chosen auth strategy.
func DefaultInteractorFactory(binary string, registry *secrets.Registry) InteractorFactory {
	return func(dir string, remote git.RemoteResolver, logger *logrus.Entry) interactorAPI {
		censor := func(content []byte) []byte {
			return []byte(registry.Mask(string(content)))
		}
		executor := git.NewCensoringExecutor(dir, binary, censor, logger)
		return git.NewInteractor(executor, remote, dir, logger)
	}
}
