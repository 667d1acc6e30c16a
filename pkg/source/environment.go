package source

// SystemConnection is the control-plane endpoint descriptor used to
// decide whether configured mutual-TLS material applies to a repository
// host: it only applies when the repository shares scheme-and-host with
// this connection's URL.
type SystemConnection struct {
	URL        string
	Credential Credential
}

// Environment carries the host-provided knobs named in the external
// interfaces: the agent temp directory for askpass helpers, and the two
// flag overrides the host may set ("system.prefergitfrompath",
// "system.selfmanagegitcreds").
type Environment struct {
	TempDir            string
	PreferGitFromPath  bool
	SelfManageGitCreds bool
	GitBinary          string
	BundledGitBinary   string
}
