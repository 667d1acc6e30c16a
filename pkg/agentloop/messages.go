// Package agentloop implements the agent run loop: the session that talks
// to the remote dispatcher, pulls typed messages, and routes them to a
// worker dispatcher with guaranteed ack-or-skip semantics. Grounded on the
// reference stack's long-running poll loops (ciongke/cmd/hook's event
// channel dispatch in main.go, generalized here from a webhook push model
// to an explicit long-poll pull model since this module has no inbound
// HTTP listener of its own).
package agentloop

import "encoding/json"

// MessageType tags a Message's body shape. Matching against a message's
// raw type string is case-insensitive (via strings.EqualFold), so
// "JobRequest" and "jobrequest" both dispatch as MessageTypeJobRequest.
type MessageType string

const (
	MessageTypeRefresh    MessageType = "refresh"
	MessageTypeJobRequest MessageType = "jobrequest"
	MessageTypeJobCancel  MessageType = "jobcancel"
)

// Message is the envelope the dispatcher hands back from getNextMessage:
// an opaque body decoded according to Type.
type Message struct {
	ID   string          `json:"messageId"`
	Type string          `json:"messageType"`
	Body json.RawMessage `json:"body"`
}

// JobRequest is the decoded body of a MessageTypeJobRequest message.
type JobRequest struct {
	JobID        string        `json:"jobId"`
	Repositories []RepoRequest `json:"repositories"`
}

// RepoRequest is one repository within a JobRequest, carrying enough of a
// RepositoryDescriptor plus its credential to hand straight to
// source.Acquire. Kept as a thin wire-shape distinct from
// source.RepositoryDescriptor so the agentloop package has no compile-time
// dependency on pkg/source's internal auth-plan machinery.
type RepoRequest struct {
	Alias                string `json:"alias"`
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	Branch               string `json:"branch"`
	Commit               string `json:"commit"`
	TargetPath           string `json:"targetPath"`
	Clean                bool   `json:"clean"`
	Submodules           bool   `json:"submodules"`
	NestedSubmodules     bool   `json:"nestedSubmodules"`
	AcceptUntrustedCerts bool   `json:"acceptUntrustedCerts"`
	FetchDepth           int    `json:"fetchDepth"`
	LFS                  bool   `json:"lfs"`
	ExposeCredentials    bool   `json:"exposeCredentials"`
	OnPremHosted         bool   `json:"onPremHosted"`

	CredentialKind string `json:"credentialKind"`
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
	AccessToken    string `json:"accessToken,omitempty"`
}

// JobCancel is the decoded body of a MessageTypeJobCancel message.
type JobCancel struct {
	JobID                string `json:"jobId"`
	AutoUpdateInProgress bool   `json:"autoUpdateInProgress"`
}
