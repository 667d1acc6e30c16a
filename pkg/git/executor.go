// Package git is the external-binary adapter: it locates, version-probes,
// and invokes the git binary (and its LFS extension), censoring every
// byte of output before it reaches a log sink or a caller. Grounded on
// the reference stack's prow/git/v2 package, whose censoringExecutor and
// interactor types this package ports, generalized to the read-only
// operation set ("init", "remote add/set-url", "config", "fetch",
// "checkout", "clean", "reset", "submodule", "lfs") a source-acquisition
// orchestrator needs instead of the reference's merge/rebase-oriented one.
package git

import (
	"fmt"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// Censor redacts secret material from raw output before it is logged or
// returned to a caller. Mirrors the reference stack's Censor type in
// prow/git/v2/executor_test.go.
type Censor func(content []byte) []byte

// rawExecute runs command with args in dir and returns its combined
// output. Exists as a field so tests can substitute a fake without
// spawning a process, matching prow/git/v2/executor_test.go's
// "execute func(dir, command string, args ...string) ([]byte, error)"
// field.
type rawExecute func(dir, command string, args ...string) ([]byte, error)

func run(dir, command string, args ...string) ([]byte, error) {
	cmd := exec.Command(command, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("running %s %v: %w", command, args, err)
	}
	return out, nil
}

// executor is the minimal surface the interactor needs from whatever runs
// git subcommands: an ordered argument list in, bytes and an error out.
type executor interface {
	Run(args ...string) ([]byte, error)
}

// censoringExecutor runs the git binary in dir, censoring its output
// through censor before it is logged or returned. One censoringExecutor
// is scoped to a single working directory, matching the reference
// stack's per-clone executor lifetime.
type censoringExecutor struct {
	logger *logrus.Entry
	dir    string
	git    string
	censor Censor

	execute rawExecute
}

// NewCensoringExecutor returns an executor that runs git (located at the
// git binary path) in dir, censoring output through censor. censor may be
// nil, in which case output passes through unchanged — used by callers
// that apply censoring at a higher layer (e.g. a shared secrets.Registry).
func NewCensoringExecutor(dir, git string, censor Censor, logger *logrus.Entry) executor {
	if censor == nil {
		censor = func(content []byte) []byte { return content }
	}
	return &censoringExecutor{
		logger:  logger,
		dir:     dir,
		git:     git,
		censor:  censor,
		execute: run,
	}
}

// Run executes git with args in e's working directory, censoring output
// before returning it. The censored output is returned even on error, so
// callers can surface external-binary diagnostics without leaking secrets.
func (e *censoringExecutor) Run(args ...string) ([]byte, error) {
	e.logger.WithField("args", args).Debug("running git command")
	out, err := e.execute(e.dir, e.git, args...)
	censored := e.censor(out)
	if err != nil {
		return censored, fmt.Errorf("error executing git command %v: %w, output: %q", args, err, censored)
	}
	return censored, nil
}
