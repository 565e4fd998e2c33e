package gitcli

import (
	"context"
	"errors"
	"strings"

	"github.com/gitsage/gitsage"
)

// Compile-time interface verification.
var _ gitsage.Applier = (*Applier)(nil)

// Applier applies patches with git apply. It never retries a rejected patch.
type Applier struct {
	runner      Runner
	root        string
	unidiffZero bool
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithUnidiffZero accepts patches without context lines, as produced by an
// engine configured with zero context.
func WithUnidiffZero() ApplierOption {
	return func(a *Applier) { a.unidiffZero = true }
}

// NewApplier creates an applier for the work tree rooted at root. A nil
// runner uses git from PATH.
func NewApplier(root string, runner Runner, opts ...ApplierOption) *Applier {
	if runner == nil {
		runner = NewExecRunner("")
	}
	a := &Applier{runner: runner, root: root}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply feeds patch to git apply on stdin.
func (a *Applier) Apply(ctx context.Context, patch string, opts gitsage.ApplyOptions) error {
	args := []string{"apply", "--whitespace=nowarn"}
	if opts.Cached {
		args = append(args, "--cached")
	}
	if opts.Reverse {
		args = append(args, "--reverse")
	}
	if a.unidiffZero {
		args = append(args, "--unidiff-zero")
	}
	_, err := a.runner.Run(ctx, a.root, strings.NewReader(patch), args...)
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return &gitsage.ApplyError{Output: cmdErr.Stderr, Err: err}
	}
	return &gitsage.ApplyError{Err: err}
}
