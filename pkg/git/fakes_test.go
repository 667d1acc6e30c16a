package git

import "fmt"

// execResponse is a canned reply for one expected argument list, keyed in
// fakeExecutor.responses by the space-joined args. Mirrors
// prow/git/v2/interactor_test.go's execResponse fixture shape.
type execResponse struct {
	out []byte
	err error
}

// fakeExecutor is a test double recording every call it receives and
// replaying canned responses, so interactor tests never spawn a real git
// process.
type fakeExecutor struct {
	records   [][]string
	responses map[string]execResponse
}

func (e *fakeExecutor) Run(args ...string) ([]byte, error) {
	e.records = append(e.records, args)
	key := argKey(args)
	resp, ok := e.responses[key]
	if !ok {
		return nil, fmt.Errorf("no response configured for args %v", args)
	}
	return resp.out, resp.err
}

func argKey(args []string) string {
	key := ""
	for i, a := range args {
		if i > 0 {
			key += " "
		}
		key += a
	}
	return key
}
