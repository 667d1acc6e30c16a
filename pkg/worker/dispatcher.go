// Package worker implements the job dispatcher that sits behind the agent
// run loop: each JobRequest fans its repositories out to pkg/source.Acquire,
// bounded by a shared semaphore the same way boskos/janitor/janitor.go
// bounds its concurrent project cleanups with a buffered-channel
// semaphore, generalized here from a fixed worker count to a configurable
// one and from a fire-and-forget goroutine to one that can be cancelled
// mid-flight.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forgeci/agent/pkg/agentloop"
	"github.com/forgeci/agent/pkg/logutil"
	"github.com/forgeci/agent/pkg/metrics"
	"github.com/forgeci/agent/pkg/provider"
	"github.com/forgeci/agent/pkg/secrets"
	"github.com/forgeci/agent/pkg/source"
)

// semaphore bounds the number of acquisitions running at once across every
// job this Dispatcher runs.
type semaphore chan struct{}

func (s semaphore) acquire(ctx context.Context) bool {
	select {
	case s <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s semaphore) release() {
	<-s
}

// Dispatcher runs JobRequests handed to it by the agent run loop, fanning
// each job's repositories out to source.Acquire concurrently. It satisfies
// agentloop.WorkerDispatcher.
type Dispatcher struct {
	cert            source.AgentCertificateBundle
	proxy           source.ProxySettings
	systemConn      source.SystemConnection
	env             source.Environment
	gitBinary       string
	metrics         *metrics.Metrics
	processRegistry *secrets.Registry
	logger          *logrus.Entry

	sem semaphore

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// Config carries the process-wide settings every acquisition a Dispatcher
// runs shares: the certificate bundle, proxy, and control-plane connection
// are host configuration, not per-job state.
type Config struct {
	Concurrency     int
	Cert            source.AgentCertificateBundle
	Proxy           source.ProxySettings
	SystemConn      source.SystemConnection
	Env             source.Environment
	GitBinary       string
	Metrics         *metrics.Metrics
	ProcessRegistry *secrets.Registry
	Logger          *logrus.Entry
}

// NewDispatcher returns a Dispatcher honoring cfg.Concurrency as the
// maximum number of acquisitions running at once across all jobs. A
// non-positive Concurrency is treated as 1.
func NewDispatcher(cfg Config) *Dispatcher {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		cert:            cfg.Cert,
		proxy:           cfg.Proxy,
		systemConn:      cfg.SystemConn,
		env:             cfg.Env,
		gitBinary:       cfg.GitBinary,
		metrics:         cfg.Metrics,
		processRegistry: cfg.ProcessRegistry,
		logger:          cfg.Logger,
		sem:             make(semaphore, concurrency),
		cancels:         map[string]context.CancelFunc{},
	}
}

// Run starts job asynchronously: every repository it names is acquired
// concurrently, each sharing one SecretRegistry scoped to the job. Run
// returns immediately; the job's completion is not observable from the
// agentloop.WorkerDispatcher interface, matching the run loop's
// fire-and-forget dispatch of job messages.
func (d *Dispatcher) Run(job agentloop.JobRequest) {
	ctx, cancel := context.WithCancel(context.Background())

	d.mu.Lock()
	d.cancels[job.JobID] = cancel
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.cancels, job.JobID)
			d.mu.Unlock()
			cancel()
		}()
		d.runJob(ctx, job)
	}()
}

// Cancel requests that job's acquisitions stop. It reports whether job was
// still running; a job already finished (or never started) cannot be
// cancelled.
func (d *Dispatcher) Cancel(job agentloop.JobCancel) bool {
	d.mu.Lock()
	cancel, ok := d.cancels[job.JobID]
	d.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// ShutdownAsync requests every running job stop and blocks until they have
// all returned.
func (d *Dispatcher) ShutdownAsync() {
	d.mu.Lock()
	for _, cancel := range d.cancels {
		cancel()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) runJob(ctx context.Context, job agentloop.JobRequest) {
	registry := secrets.NewRegistry()
	factory := source.DefaultInteractorFactory(d.gitBinary, registry)

	var repoWG sync.WaitGroup
	for _, repo := range job.Repositories {
		repo := repo
		repoWG.Add(1)
		go func() {
			defer repoWG.Done()
			d.acquireOne(ctx, job.JobID, repo, registry, factory)
		}()
	}
	repoWG.Wait()
}

func (d *Dispatcher) acquireOne(ctx context.Context, jobID string, repo agentloop.RepoRequest, registry *secrets.Registry, factory source.InteractorFactory) {
	if !d.sem.acquire(ctx) {
		return
	}
	defer d.sem.release()

	logEntry := d.logger.WithFields(logrus.Fields{"job": jobID, "alias": repo.Alias})

	descriptor, credential, err := convertRepo(repo)
	if err != nil {
		logEntry.WithError(err).Error("invalid repository request")
		return
	}

	sink := &processCensoringSink{
		EntrySink: logutil.NewEntrySink(logEntry, registry),
		process:   d.processRegistry,
	}
	start := time.Now()
	_, err = source.Acquire(ctx, descriptor, credential, d.cert, d.proxy, d.systemConn, d.env, registry, sink, factory)
	if d.metrics != nil {
		d.metrics.ObserveAcquisition(descriptor.Type.String(), time.Since(start), err)
	}
	if err != nil {
		logEntry.WithError(err).Error("acquisition failed")
	}
}

// processCensoringSink registers every secret both in its acquisition's
// own registry (which the git interactor's censoring executor consults)
// and in the process-wide registry that the top-level logger's
// CensoringFormatter is bound to, so a secret surfaced mid-acquisition is
// masked out of every log line the process emits, not just this job's.
type processCensoringSink struct {
	*logutil.EntrySink
	process *secrets.Registry
}

func (s *processCensoringSink) SetSecret(secret string) {
	s.EntrySink.SetSecret(secret)
	if s.process != nil {
		s.process.Add(secret)
	}
}

// convertRepo maps one wire-shape RepoRequest onto the source package's
// acquisition inputs.
func convertRepo(repo agentloop.RepoRequest) (source.RepositoryDescriptor, source.Credential, error) {
	providerType, err := provider.ParseType(repo.Type)
	if err != nil {
		return source.RepositoryDescriptor{}, source.Credential{}, fmt.Errorf("repository %q: %w", repo.Alias, err)
	}

	descriptor := source.RepositoryDescriptor{
		Alias:                repo.Alias,
		Type:                 providerType,
		URL:                  repo.URL,
		Branch:               repo.Branch,
		Commit:               repo.Commit,
		TargetPath:           repo.TargetPath,
		Clean:                repo.Clean,
		Submodules:           repo.Submodules,
		NestedSubmodules:     repo.NestedSubmodules,
		AcceptUntrustedCerts: repo.AcceptUntrustedCerts,
		FetchDepth:           repo.FetchDepth,
		LFS:                  repo.LFS,
		ExposeCredentials:    repo.ExposeCredentials,
		OnPremHosted:         repo.OnPremHosted,
	}

	credential, err := convertCredential(repo)
	if err != nil {
		return source.RepositoryDescriptor{}, source.Credential{}, fmt.Errorf("repository %q: %w", repo.Alias, err)
	}
	return descriptor, credential, nil
}
