package git

import (
	"errors"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInteractor_Init(t *testing.T) {
	var testCases = []struct {
		name          string
		extraArgs     []string
		responses     map[string]execResponse
		expectedCalls [][]string
		expectedErr   bool
	}{
		{
			name:          "happy case",
			responses:     map[string]execResponse{"init": {out: []byte("ok")}},
			expectedCalls: [][]string{{"init"}},
		},
		{
			name:          "with extra args spliced before the verb",
			extraArgs:     []string{"-c", "http.sslVerify=false"},
			responses:     map[string]execResponse{"-c http.sslVerify=false init": {out: []byte("ok")}},
			expectedCalls: [][]string{{"-c", "http.sslVerify=false", "init"}},
		},
		{
			name:          "init fails",
			responses:     map[string]execResponse{"init": {err: errors.New("oops")}},
			expectedCalls: [][]string{{"init"}},
			expectedErr:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := &fakeExecutor{responses: tc.responses}
			i := interactor{executor: e, logger: logrus.WithField("test", tc.name)}
			err := i.Init(tc.extraArgs...)
			if tc.expectedErr && err == nil {
				t.Error("expected an error but got none")
			}
			if !tc.expectedErr && err != nil {
				t.Errorf("expected no error but got one: %v", err)
			}
			if !reflect.DeepEqual(e.records, tc.expectedCalls) {
				t.Errorf("got incorrect git calls: %v != %v", e.records, tc.expectedCalls)
			}
		})
	}
}

func TestInteractor_RemoteAdd(t *testing.T) {
	e := &fakeExecutor{responses: map[string]execResponse{
		"remote add origin https://example.com/repo.git": {out: []byte("ok")},
	}}
	i := interactor{executor: e, logger: logrus.WithField("test", "remote-add")}
	if err := i.RemoteAdd("origin", "https://example.com/repo.git"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	expected := [][]string{{"remote", "add", "origin", "https://example.com/repo.git"}}
	if !reflect.DeepEqual(e.records, expected) {
		t.Errorf("got incorrect git calls: %v != %v", e.records, expected)
	}
}

func TestInteractor_RemoteSetURL(t *testing.T) {
	e := &fakeExecutor{responses: map[string]execResponse{
		"remote set-url origin https://example.com/repo.git": {out: []byte("ok")},
	}}
	i := interactor{executor: e, logger: logrus.WithField("test", "remote-set-url")}
	if err := i.RemoteSetURL("origin", "https://example.com/repo.git"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestInteractor_RemoteSetPushURL(t *testing.T) {
	e := &fakeExecutor{responses: map[string]execResponse{
		"remote set-url --push origin https://example.com/repo.git": {out: []byte("ok")},
	}}
	i := interactor{executor: e, logger: logrus.WithField("test", "remote-set-push-url")}
	if err := i.RemoteSetPushURL("origin", "https://example.com/repo.git"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestInteractor_GetFetchURL(t *testing.T) {
	e := &fakeExecutor{responses: map[string]execResponse{
		"remote get-url origin": {out: []byte("https://example.com/repo.git\n")},
	}}
	i := interactor{executor: e, logger: logrus.WithField("test", "get-fetch-url")}
	url, err := i.GetFetchURL("origin")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if expected := "https://example.com/repo.git"; url != expected {
		t.Errorf("expected %q, got %q", expected, url)
	}
}

func TestInteractor_Config(t *testing.T) {
	var testCases = []struct {
		name          string
		op            func(i *interactor) error
		responses     map[string]execResponse
		expectedCalls [][]string
		expectedErr   bool
	}{
		{
			name:          "set",
			op:            func(i *interactor) error { return i.ConfigSet("key", "value") },
			responses:     map[string]execResponse{"config key value": {out: []byte("ok")}},
			expectedCalls: [][]string{{"config", "key", "value"}},
		},
		{
			name:          "set fails",
			op:            func(i *interactor) error { return i.ConfigSet("key", "value") },
			responses:     map[string]execResponse{"config key value": {err: errors.New("oops")}},
			expectedCalls: [][]string{{"config", "key", "value"}},
			expectedErr:   true,
		},
		{
			name:          "unset",
			op:            func(i *interactor) error { return i.ConfigUnset("key") },
			responses:     map[string]execResponse{"config --unset key": {out: []byte("ok")}},
			expectedCalls: [][]string{{"config", "--unset", "key"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := &fakeExecutor{responses: tc.responses}
			i := interactor{executor: e, logger: logrus.WithField("test", tc.name)}
			err := tc.op(&i)
			if tc.expectedErr && err == nil {
				t.Error("expected an error but got none")
			}
			if !tc.expectedErr && err != nil {
				t.Errorf("expected no error but got one: %v", err)
			}
			if !reflect.DeepEqual(e.records, tc.expectedCalls) {
				t.Errorf("got incorrect git calls: %v != %v", e.records, tc.expectedCalls)
			}
		})
	}
}

func TestInteractor_ConfigExists(t *testing.T) {
	e := &fakeExecutor{responses: map[string]execResponse{
		"config --get present": {out: []byte("value")},
		"config --get absent":  {err: errors.New("exit status 1")},
	}}
	i := interactor{executor: e, logger: logrus.WithField("test", "config-exists")}
	if !i.ConfigExists("present") {
		t.Error("expected present key to exist")
	}
	if i.ConfigExists("absent") {
		t.Error("expected absent key not to exist")
	}
}

func TestInteractor_Fetch(t *testing.T) {
	var testCases = []struct {
		name          string
		depth         int
		refspecs      []string
		remote        RemoteResolver
		responses     map[string]execResponse
		expectedCalls [][]string
		expectedErr   bool
	}{
		{
			name:          "happy case, no depth",
			remote:        func() (string, error) { return "someone.com", nil },
			responses:     map[string]execResponse{"fetch someone.com": {out: []byte("ok")}},
			expectedCalls: [][]string{{"fetch", "someone.com"}},
		},
		{
			name:          "with depth and refspecs",
			depth:         1,
			refspecs:      []string{"+refs/heads/*:refs/remotes/origin/*"},
			remote:        func() (string, error) { return "someone.com", nil },
			responses:     map[string]execResponse{"fetch --depth=1 someone.com +refs/heads/*:refs/remotes/origin/*": {out: []byte("ok")}},
			expectedCalls: [][]string{{"fetch", "--depth=1", "someone.com", "+refs/heads/*:refs/remotes/origin/*"}},
		},
		{
			name:          "remote resolution fails",
			remote:        func() (string, error) { return "", errors.New("oops") },
			responses:     map[string]execResponse{},
			expectedCalls: nil,
			expectedErr:   true,
		},
		{
			name:          "fetch fails",
			remote:        func() (string, error) { return "someone.com", nil },
			responses:     map[string]execResponse{"fetch someone.com": {err: errors.New("oops")}},
			expectedCalls: [][]string{{"fetch", "someone.com"}},
			expectedErr:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := &fakeExecutor{responses: tc.responses}
			i := interactor{executor: e, remote: tc.remote, logger: logrus.WithField("test", tc.name)}
			err := i.Fetch(nil, tc.depth, tc.refspecs...)
			if tc.expectedErr && err == nil {
				t.Error("expected an error but got none")
			}
			if !tc.expectedErr && err != nil {
				t.Errorf("expected no error but got one: %v", err)
			}
			if !reflect.DeepEqual(e.records, tc.expectedCalls) {
				t.Errorf("got incorrect git calls: %v != %v", e.records, tc.expectedCalls)
			}
		})
	}
}

func TestInteractor_Checkout(t *testing.T) {
	e := &fakeExecutor{responses: map[string]execResponse{
		"checkout refs/remotes/origin/main": {out: []byte("ok")},
	}}
	i := interactor{executor: e, logger: logrus.WithField("test", "checkout")}
	if err := i.Checkout("refs/remotes/origin/main"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestInteractor_Clean(t *testing.T) {
	e := &fakeExecutor{responses: map[string]execResponse{
		"clean -fdx": {out: []byte("ok")},
	}}
	i := interactor{executor: e, logger: logrus.WithField("test", "clean")}
	if err := i.Clean(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestInteractor_Reset(t *testing.T) {
	e := &fakeExecutor{responses: map[string]execResponse{
		"reset --hard": {out: []byte("ok")},
	}}
	i := interactor{executor: e, logger: logrus.WithField("test", "reset")}
	if err := i.Reset("--hard"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestInteractor_SubmoduleUpdate(t *testing.T) {
	e := &fakeExecutor{responses: map[string]execResponse{
		"submodule update --init --recursive --depth=1": {out: []byte("ok")},
	}}
	i := interactor{executor: e, logger: logrus.WithField("test", "submodule-update")}
	if err := i.SubmoduleUpdate(nil, 1); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestInteractor_LFS(t *testing.T) {
	e := &fakeExecutor{responses: map[string]execResponse{
		"lfs install --local":             {out: []byte("ok")},
		"lfs fetch someone.com refs/heads/master": {out: []byte("ok")},
	}}
	i := interactor{executor: e, remote: func() (string, error) { return "someone.com", nil }, logger: logrus.WithField("test", "lfs")}
	if err := i.LFSInstall(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := i.LFSFetch(nil, "refs/heads/master"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
