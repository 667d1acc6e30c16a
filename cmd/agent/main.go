// Command agent is the process entrypoint: it wires configuration,
// censoring logging, a Prometheus metrics server, the job dispatcher, and
// the run-loop session together, then blocks in Session.Run until an
// operator signal arrives (Run returns at once with exit code 1 if the
// dispatcher session cannot be created).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/forgeci/agent/pkg/agentloop"
	"github.com/forgeci/agent/pkg/config"
	"github.com/forgeci/agent/pkg/logutil"
	"github.com/forgeci/agent/pkg/metrics"
	"github.com/forgeci/agent/pkg/secrets"
	"github.com/forgeci/agent/pkg/source"
	"github.com/forgeci/agent/pkg/worker"
)

var configFile = flag.String("config-file", "", "Optional YAML file overriding flag-set configuration.")

func main() {
	cfg := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.LoadOverride(*configFile); err != nil {
		logrus.WithError(err).Fatal("could not load config override")
	}

	processRegistry := secrets.NewRegistry()
	logger := logrus.New()
	logger.SetFormatter(logutil.NewCensoringFormatter(&logrus.JSONFormatter{}, processRegistry))
	log := logrus.NewEntry(logger)

	promRegistry := prometheus.NewRegistry()
	collectors := metrics.New(promRegistry)
	go func() {
		if err := metrics.Serve(cfg.MetricsPort, promRegistry); err != nil {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	dispatcherClient := agentloop.NewHTTPDispatcherClient(
		cfg.DispatcherURL,
		cfg.PoolID,
		time.Duration(cfg.LongPollSeconds)*time.Second,
	)

	dispatcher := worker.NewDispatcher(worker.Config{
		Concurrency: cfg.Concurrency,
		Cert: source.AgentCertificateBundle{
			CAFile:               cfg.CAFile,
			ClientCertFile:       cfg.ClientCertFile,
			ClientKeyFile:        cfg.ClientKeyFile,
			SkipServerValidation: cfg.SkipServerValidation,
		},
		SystemConn: source.SystemConnection{
			URL: cfg.DispatcherURL,
		},
		Proxy: source.ProxySettings{
			Address: cfg.ProxyAddress,
		},
		Env: source.Environment{
			TempDir:            cfg.TempDir,
			PreferGitFromPath:  cfg.PreferGitFromPath,
			SelfManageGitCreds: cfg.SelfManageGitCreds,
			GitBinary:          cfg.GitBinary,
			BundledGitBinary:   cfg.BundledGitBinary,
		},
		GitBinary:       cfg.GitBinary,
		Metrics:         collectors,
		ProcessRegistry: processRegistry,
		Logger:          log,
	})

	session := agentloop.NewSession(dispatcherClient, dispatcher, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		if session.InConfigStage() {
			log.Warning("interrupted while establishing dispatcher session, exiting immediately")
			os.Exit(1)
		}
		log.Info("interrupted, shutting down the run loop")
		cancel()
	}()

	os.Exit(session.Run(ctx))
}
