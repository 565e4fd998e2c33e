package gitcli

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gitsage/gitsage"
	"golang.org/x/sync/errgroup"
)

// Compile-time interface verification.
var _ gitsage.Engine = (*Engine)(nil)

// EmptyTree is the object name of git's empty tree. It is used as the old
// side when HEAD is unborn or a commit has no parent.
const EmptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// DefaultContextLines is the number of context lines around each change.
const DefaultContextLines = 3

// Engine produces raw diffs by running git diff in a repository.
type Engine struct {
	runner       Runner
	root         string
	contextLines int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRunner sets the runner used to invoke git.
func WithRunner(r Runner) EngineOption {
	return func(e *Engine) { e.runner = r }
}

// WithContextLines sets the number of context lines; negative values are ignored.
func WithContextLines(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.contextLines = n
		}
	}
}

// NewEngine creates an engine for the work tree rooted at root.
func NewEngine(root string, opts ...EngineOption) *Engine {
	e := &Engine{
		runner:       NewExecRunner(""),
		root:         root,
		contextLines: DefaultContextLines,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Diff runs the patch and summary queries for req concurrently.
func (e *Engine) Diff(ctx context.Context, req gitsage.DiffRequest) (*gitsage.RawDiff, error) {
	selectors, err := e.selectors(ctx, req)
	if err != nil {
		return nil, err
	}

	patchArgs := append([]string{
		"diff", "--no-color", "--no-ext-diff", "--no-textconv",
		"--src-prefix=a/", "--dst-prefix=b/",
		"--unified=" + strconv.Itoa(e.contextLines),
	}, selectors...)
	statArgs := append([]string{
		"diff", "--no-color", "--no-ext-diff", "--no-textconv", "--shortstat",
	}, selectors...)
	if req.Path != "" {
		patchArgs = append(patchArgs, "--", req.Path)
		statArgs = append(statArgs, "--", req.Path)
	}

	var raw gitsage.RawDiff
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := e.runner.Run(gctx, e.root, nil, patchArgs...)
		if err != nil {
			return &gitsage.EngineError{Op: "diff", Err: err}
		}
		raw.Patch = out
		return nil
	})
	g.Go(func() error {
		out, err := e.runner.Run(gctx, e.root, nil, statArgs...)
		if err != nil {
			return &gitsage.EngineError{Op: "shortstat", Err: err}
		}
		stats, err := ParseShortstat(out)
		if err != nil {
			return &gitsage.EngineError{Op: "shortstat", Err: err}
		}
		raw.Stats = stats
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &raw, nil
}

// selectors returns the git diff arguments choosing the compared snapshots.
func (e *Engine) selectors(ctx context.Context, req gitsage.DiffRequest) ([]string, error) {
	switch req.Mode {
	case gitsage.ModeStaged:
		return []string{"--cached", "--no-renames"}, nil
	case gitsage.ModeUnstaged:
		return []string{"--no-renames"}, nil
	case gitsage.ModeWorkdir:
		base := "HEAD"
		if !e.hasHead(ctx) {
			base = EmptyTree
		}
		return []string{"--no-renames", base}, nil
	case gitsage.ModeCommit:
		if strings.TrimSpace(req.Commit) == "" {
			return nil, &gitsage.EngineError{Op: "diff", Err: fmt.Errorf("commit is required")}
		}
		commit, parent, err := e.firstParent(ctx, req.Commit)
		if err != nil {
			return nil, err
		}
		return []string{"-M", parent, commit}, nil
	default:
		return nil, &gitsage.EngineError{Op: "diff", Err: fmt.Errorf("unsupported mode %s", req.Mode)}
	}
}

func (e *Engine) hasHead(ctx context.Context) bool {
	_, err := e.runner.Run(ctx, e.root, nil, "rev-parse", "--verify", "--quiet", "HEAD^{commit}")
	return err == nil
}

// firstParent resolves rev to a commit and its first parent, substituting
// the empty tree for root commits.
func (e *Engine) firstParent(ctx context.Context, rev string) (commit, parent string, err error) {
	out, err := e.runner.Run(ctx, e.root, nil, "rev-list", "--parents", "-n", "1", rev+"^{commit}", "--")
	if err != nil {
		return "", "", &gitsage.EngineError{Op: "rev-list", Err: err}
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return "", "", &gitsage.EngineError{Op: "rev-list", Err: fmt.Errorf("unknown revision %q", rev)}
	}
	if len(fields) == 1 {
		return fields[0], EmptyTree, nil
	}
	return fields[0], fields[1], nil
}

var (
	filesChangedRe = regexp.MustCompile(`(\d+) files? changed`)
	insertionsRe   = regexp.MustCompile(`(\d+) insertions?\(\+\)`)
	deletionsRe    = regexp.MustCompile(`(\d+) deletions?\(-\)`)
)

// ParseShortstat parses the summary line printed by git diff --shortstat.
// Empty output means no changes.
func ParseShortstat(out []byte) (gitsage.DiffStats, error) {
	var stats gitsage.DiffStats
	line := bytes.TrimSpace(out)
	if len(line) == 0 {
		return stats, nil
	}
	m := filesChangedRe.FindSubmatch(line)
	if m == nil {
		return stats, fmt.Errorf("unrecognized shortstat %q", line)
	}
	stats.FilesChanged, _ = strconv.Atoi(string(m[1]))
	if m := insertionsRe.FindSubmatch(line); m != nil {
		stats.Insertions, _ = strconv.Atoi(string(m[1]))
	}
	if m := deletionsRe.FindSubmatch(line); m != nil {
		stats.Deletions, _ = strconv.Atoi(string(m[1]))
	}
	return stats, nil
}
