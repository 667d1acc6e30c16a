package agentloop

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// messageDeleteTimeout is the hardcoded deadline for the guaranteed-
// execution message-deletion block, named explicitly in the run-loop
// protocol rather than left configurable.
const messageDeleteTimeout = 30 * time.Second

// transientRetryDelay bounds how often a transient getNextMessage error
// is retried, so a dispatcher outage turns into a steady retry cadence
// instead of a tight CPU-spinning loop.
const transientRetryDelay = time.Second

// WorkerDispatcher is the run loop's downstream collaborator: it owns job
// lifecycle once a JobRequest is handed off, and reports whether a
// JobCancel was accepted.
type WorkerDispatcher interface {
	Run(job JobRequest)
	Cancel(job JobCancel) bool
	ShutdownAsync()
}

// Session is one run of the agent run loop: open a dispatcher session,
// poll for messages, route them to a WorkerDispatcher, and guarantee
// ack-or-skip semantics on every message before moving to the next.
type Session struct {
	client DispatcherClient
	worker WorkerDispatcher
	logger *logrus.Entry

	inConfigStage atomic.Bool
}

// NewSession returns a Session polling client and routing to worker.
func NewSession(client DispatcherClient, worker WorkerDispatcher, logger *logrus.Entry) *Session {
	return &Session{client: client, worker: worker, logger: logger}
}

// InConfigStage reports whether the session is still establishing its
// dispatcher session, as opposed to running the poll loop. A caller's
// interrupt handler uses this to decide between an immediate exit and a
// cooperative cancellation.
func (s *Session) InConfigStage() bool {
	return s.inConfigStage.Load()
}

// Run executes the full run-loop protocol until ctx is cancelled, and
// returns the process exit code: 0 on a clean run, 1 if the dispatcher
// session could not be established.
func (s *Session) Run(ctx context.Context) int {
	s.inConfigStage.Store(true)
	accepted, err := s.client.CreateSession(ctx)
	if err != nil || !accepted {
		s.logger.WithError(err).Error("could not create dispatcher session")
		return 1
	}
	s.inConfigStage.Store(false)

	for ctx.Err() == nil {
		msg, err := s.client.GetNextMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.WithError(err).Warning("transient error fetching next message, retrying")
			select {
			case <-time.After(transientRetryDelay):
			case <-ctx.Done():
			}
			continue
		}

		skipDelete := s.dispatch(msg)
		s.acknowledge(msg, skipDelete)
	}

	s.worker.ShutdownAsync()
	if err := s.client.DeleteSession(context.Background()); err != nil {
		s.logger.WithError(err).Warning("could not delete dispatcher session")
	}
	return 0
}

// dispatch routes msg by its (case-insensitive) type and reports whether
// its deletion must be skipped.
func (s *Session) dispatch(msg *Message) bool {
	switch {
	case strings.EqualFold(msg.Type, string(MessageTypeRefresh)):
		return false

	case strings.EqualFold(msg.Type, string(MessageTypeJobRequest)):
		var job JobRequest
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			s.logger.WithError(err).Error("could not decode job request")
			return false
		}
		s.worker.Run(job)
		return false

	case strings.EqualFold(msg.Type, string(MessageTypeJobCancel)):
		var cancel JobCancel
		if err := json.Unmarshal(msg.Body, &cancel); err != nil {
			s.logger.WithError(err).Error("could not decode job cancel")
			return false
		}
		accepted := s.worker.Cancel(cancel)
		// An unaccepted cancel during an in-progress auto-update must
		// redeliver once the update completes, so its message is left
		// undeleted rather than acknowledged here.
		return !accepted && cancel.AutoUpdateInProgress

	default:
		s.logger.WithField("type", msg.Type).Warning("unrecognized message type")
		return false
	}
}

// acknowledge deletes msg within its own 30-second deadline, unless skip
// is set. Deletion errors are logged, never propagated: a missed deletion
// just causes redelivery, which downstream handling already tolerates.
func (s *Session) acknowledge(msg *Message, skip bool) {
	if skip {
		return
	}
	deleteCtx, cancel := context.WithTimeout(context.Background(), messageDeleteTimeout)
	defer cancel()
	if err := s.client.DeleteMessage(deleteCtx, msg.ID); err != nil {
		s.logger.WithError(err).Warning("could not delete message")
	}
}
