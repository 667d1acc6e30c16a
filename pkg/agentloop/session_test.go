package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

type fakeClient struct {
	mu sync.Mutex

	createOK  bool
	createErr error

	messages    []*Message
	nextErr     error
	deleted     []string
	deleteErr   error
	sessionDone bool
}

func (c *fakeClient) CreateSession(ctx context.Context) (bool, error) {
	return c.createOK, c.createErr
}

func (c *fakeClient) GetNextMessage(ctx context.Context) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nextErr != nil {
		return nil, c.nextErr
	}
	if len(c.messages) == 0 {
		return nil, errors.New("no more messages")
	}
	msg := c.messages[0]
	c.messages = c.messages[1:]
	return msg, nil
}

func (c *fakeClient) DeleteMessage(ctx context.Context, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, messageID)
	return c.deleteErr
}

func (c *fakeClient) DeleteSession(ctx context.Context) error {
	c.sessionDone = true
	return nil
}

func (c *fakeClient) deletedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deleted)
}

type fakeWorker struct {
	mu       sync.Mutex
	ran      []JobRequest
	cancels  []JobCancel
	cancelOK bool
	shutdown bool
}

func (w *fakeWorker) Run(job JobRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ran = append(w.ran, job)
}

func (w *fakeWorker) Cancel(job JobCancel) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancels = append(w.cancels, job)
	return w.cancelOK
}

func (w *fakeWorker) ShutdownAsync() {
	w.shutdown = true
}

func discardLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestSessionRunsJobRequestThenCancel(t *testing.T) {
	jobBody, _ := json.Marshal(JobRequest{JobID: "job-1"})
	cancelBody, _ := json.Marshal(JobCancel{JobID: "job-1"})

	client := &fakeClient{
		createOK: true,
		messages: []*Message{
			{ID: "m1", Type: "JobRequest", Body: jobBody},
			{ID: "m2", Type: "jobcancel", Body: cancelBody},
		},
	}
	worker := &fakeWorker{cancelOK: true}

	session := NewSession(client, worker, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- session.Run(ctx) }()

	// Let the loop drain both messages, then cancel so GetNextMessage's
	// next call returns ctx.Err() territory and the loop exits.
	for client.deletedCount() < 2 {
	}
	cancel()
	code := <-done

	if code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
	if len(worker.ran) != 1 || worker.ran[0].JobID != "job-1" {
		t.Errorf("expected Run to be called with job-1, got %v", worker.ran)
	}
	if len(worker.cancels) != 1 || worker.cancels[0].JobID != "job-1" {
		t.Errorf("expected Cancel to be called with job-1, got %v", worker.cancels)
	}
	if len(client.deleted) != 2 {
		t.Errorf("expected both messages deleted, got %v", client.deleted)
	}
	if !worker.shutdown {
		t.Error("expected ShutdownAsync to be called on exit")
	}
	if !client.sessionDone {
		t.Error("expected DeleteSession to be called on exit")
	}
}

func TestSessionDoesNotDeleteUnacceptedCancelDuringAutoUpdate(t *testing.T) {
	cancelBody, _ := json.Marshal(JobCancel{JobID: "job-1", AutoUpdateInProgress: true})
	client := &fakeClient{
		createOK: true,
		messages: []*Message{
			{ID: "m1", Type: "JobCancel", Body: cancelBody},
		},
	}
	worker := &fakeWorker{cancelOK: false}
	session := NewSession(client, worker, discardLogger())

	msg := client.messages[0]
	skip := session.dispatch(msg)
	if !skip {
		t.Error("expected deletion to be skipped when an in-progress auto-update rejects the cancel")
	}
}

func TestSessionReturnsOneWhenSessionCreationFails(t *testing.T) {
	client := &fakeClient{createOK: false}
	worker := &fakeWorker{}
	session := NewSession(client, worker, discardLogger())

	code := session.Run(context.Background())
	if code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}

func TestSessionRefreshIsAckedNoOp(t *testing.T) {
	client := &fakeClient{createOK: true}
	worker := &fakeWorker{}
	session := NewSession(client, worker, discardLogger())

	skip := session.dispatch(&Message{ID: "m1", Type: "Refresh"})
	if skip {
		t.Error("expected a refresh message to be acknowledged, not skipped")
	}
	if len(worker.ran) != 0 || len(worker.cancels) != 0 {
		t.Error("expected refresh to be a no-op for the worker")
	}
}

func TestSessionInConfigStageTransitionsAfterSessionCreated(t *testing.T) {
	client := &fakeClient{createOK: true}
	worker := &fakeWorker{}
	session := NewSession(client, worker, discardLogger())

	if session.InConfigStage() {
		t.Error("expected InConfigStage to start false before Run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session.Run(ctx)

	if session.InConfigStage() {
		t.Error("expected InConfigStage to be false once session creation completes")
	}
}
