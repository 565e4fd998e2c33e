// Package gitcli implements the diff engine and the apply gateway on top of
// the git binary.
package gitcli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
)

// Runner executes git commands.
type Runner interface {
	// Run executes git with args in dir, feeding stdin when non-nil, and
	// returns its standard output.
	Run(ctx context.Context, dir string, stdin io.Reader, args ...string) ([]byte, error)
}

// CommandError reports a git invocation that failed to start or exited
// with a nonzero status.
type CommandError struct {
	Args   []string
	Stderr string // standard error, unmodified
	Err    error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", sanitizeArgs(e.Args), msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner executes the configured git binary.
type ExecRunner struct {
	GitBin string
}

// NewExecRunner returns a runner for gitBin, or "git" from PATH when empty.
func NewExecRunner(gitBin string) *ExecRunner {
	if strings.TrimSpace(gitBin) == "" {
		gitBin = "git"
	}
	return &ExecRunner{GitBin: gitBin}
}

func (e *ExecRunner) Run(ctx context.Context, dir string, stdin io.Reader, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.GitBin, args...)
	if strings.TrimSpace(dir) != "" {
		cmd.Dir = dir
	}
	cmd.Stdin = stdin
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		return nil, &CommandError{Args: args, Stderr: errb.String(), Err: err}
	}
	return out.Bytes(), nil
}

var safeArg = regexp.MustCompile(`^[a-z][a-z-]*$`)

// sanitizeArgs returns a minimal summary of the git operation: at most the
// first two tokens that look like subcommand words.
func sanitizeArgs(args []string) string {
	if len(args) == 0 {
		return "<no-args>"
	}
	safe := make([]string, 0, 2)
	for _, a := range args {
		if !safeArg.MatchString(a) {
			// stop on first non-word token to keep paths out of messages
			break
		}
		safe = append(safe, a)
		if len(safe) == 2 {
			break
		}
	}
	if len(safe) == 0 {
		return "<redacted>"
	}
	return strings.Join(safe, " ")
}
