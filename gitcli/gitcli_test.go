package gitcli_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/gitsage/gitsage/gitcli"
)

// fakeRunner records invocations and answers them with RunFn.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	stdin []string
	RunFn func(args []string) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, _ string, stdin io.Reader, args ...string) ([]byte, error) {
	var in string
	if stdin != nil {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		in = string(b)
	}
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.stdin = append(f.stdin, in)
	f.mu.Unlock()
	return f.RunFn(args)
}

// call returns the recorded invocation whose arguments contain marker.
func (f *fakeRunner) call(marker string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		for _, a := range c {
			if a == marker {
				return c
			}
		}
	}
	return nil
}

func has(args []string, marker string) bool {
	for _, a := range args {
		if a == marker {
			return true
		}
	}
	return false
}

// gitFake answers diff, shortstat, rev-parse and rev-list like git would
// for a repository with HEAD when headExists is set.
func gitFake(patch string, headExists bool, revList string) func(args []string) ([]byte, error) {
	return func(args []string) ([]byte, error) {
		switch {
		case args[0] == "rev-parse":
			if !headExists {
				return nil, &gitcli.CommandError{Args: args, Err: errors.New("exit status 1")}
			}
			return []byte("abc\n"), nil
		case args[0] == "rev-list":
			return []byte(revList), nil
		case has(args, "--shortstat"):
			if patch == "" {
				return nil, nil
			}
			return []byte(" 1 file changed, 1 insertion(+)\n"), nil
		default:
			return []byte(patch), nil
		}
	}
}
