// Package config defines the agent process's configuration surface:
// flags layered the way ciongke/cmd/hook/main.go declares its flag vars,
// plus an optional YAML override file decoded with sigs.k8s.io/yaml so a
// deployment can pin settings without rebuilding flag arguments.
package config

import (
	"flag"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Config is the agent process's full configuration, populated first from
// flag defaults, then overridden field-by-field by an optional YAML file.
type Config struct {
	DispatcherURL   string `json:"dispatcherUrl"`
	PoolID          string `json:"poolId"`
	LongPollSeconds int    `json:"longPollSeconds"`

	GitBinary          string `json:"gitBinary"`
	BundledGitBinary   string `json:"bundledGitBinary"`
	PreferGitFromPath  bool   `json:"preferGitFromPath"`
	SelfManageGitCreds bool   `json:"selfManageGitCreds"`
	TempDir            string `json:"tempDir"`

	Concurrency int `json:"concurrency"`

	MetricsPort int `json:"metricsPort"`

	CAFile               string `json:"caFile"`
	ClientCertFile       string `json:"clientCertFile"`
	ClientKeyFile        string `json:"clientKeyFile"`
	SkipServerValidation bool   `json:"skipServerValidation"`

	ProxyAddress string `json:"proxyAddress"`
}

// RegisterFlags binds fs's flags into a new Config and returns it, so
// callers can parse fs and then apply cfg.LoadOverride(*configFile).
func RegisterFlags(fs *flag.FlagSet) *Config {
	cfg := &Config{}
	fs.StringVar(&cfg.DispatcherURL, "dispatcher-url", "", "Base URL of the dispatcher this agent polls.")
	fs.StringVar(&cfg.PoolID, "pool-id", "", "Pool ID this agent registers sessions under.")
	fs.IntVar(&cfg.LongPollSeconds, "long-poll-seconds", 50, "Seconds to hold a getNextMessage request open.")

	fs.StringVar(&cfg.GitBinary, "git-binary", "git", "Name or path of the git binary to invoke.")
	fs.StringVar(&cfg.BundledGitBinary, "bundled-git-binary", "", "Path to an agent-bundled git binary, preferred over the path-resolved one on operating systems whose default TLS stack is not OpenSSL.")
	fs.BoolVar(&cfg.PreferGitFromPath, "prefer-git-from-path", false, "Resolve the git binary from PATH instead of a bundled copy.")
	fs.BoolVar(&cfg.SelfManageGitCreds, "self-manage-git-creds", false, "Skip credential planning; the caller manages git credentials itself.")
	fs.StringVar(&cfg.TempDir, "temp-dir", os.TempDir(), "Directory for askpass helpers and other transient files.")

	fs.IntVar(&cfg.Concurrency, "concurrency", 4, "Maximum number of acquisitions running at once.")

	fs.IntVar(&cfg.MetricsPort, "metrics-port", 9090, "Port serving /metrics.")

	fs.StringVar(&cfg.CAFile, "ca-file", "", "CA bundle for the dispatcher's TLS certificate.")
	fs.StringVar(&cfg.ClientCertFile, "client-cert-file", "", "Client certificate for mutual TLS to the dispatcher.")
	fs.StringVar(&cfg.ClientKeyFile, "client-key-file", "", "Client key for mutual TLS to the dispatcher.")
	fs.BoolVar(&cfg.SkipServerValidation, "skip-server-validation", false, "Skip TLS server certificate validation (testing only).")

	fs.StringVar(&cfg.ProxyAddress, "proxy-address", "", "HTTP(S) proxy address for the external git binary.")

	return cfg
}

// LoadOverride decodes path as YAML onto cfg, overriding any field the
// file sets. An empty path is a no-op, matching how most reference-stack
// components treat an unset config-file flag.
func (cfg *Config) LoadOverride(path string) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config override %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parsing config override %s: %w", path, err)
	}
	return nil
}
