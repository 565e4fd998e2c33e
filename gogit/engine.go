package gogit

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gitsage/gitsage"
	"github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Compile-time interface verification.
var _ gitsage.Engine = (*Engine)(nil)

// Engine serves commit diffs from the object database and hands every other
// mode to a fallback engine.
type Engine struct {
	repo         *Repository
	fallback     gitsage.Engine
	contextLines int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithContextLines sets the number of context lines; negative values are ignored.
func WithContextLines(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.contextLines = n
		}
	}
}

// NewEngine creates an engine over repo. fallback may be nil, in which case
// non-commit modes fail.
func NewEngine(repo *Repository, fallback gitsage.Engine, opts ...EngineOption) *Engine {
	e := &Engine{repo: repo, fallback: fallback, contextLines: diff.DefaultContextLines}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Diff implements gitsage.Engine.
func (e *Engine) Diff(ctx context.Context, req gitsage.DiffRequest) (*gitsage.RawDiff, error) {
	if req.Mode != gitsage.ModeCommit {
		if e.fallback == nil {
			return nil, &gitsage.EngineError{Op: "diff", Err: fmt.Errorf("mode %s not supported", req.Mode)}
		}
		return e.fallback.Diff(ctx, req)
	}
	raw, err := e.commitDiff(ctx, req.Commit)
	if err != nil {
		return nil, &gitsage.EngineError{Op: "diff", Err: err}
	}
	return raw, nil
}

// commitDiff compares a commit's tree against its first parent's tree, or
// against the empty tree for a root commit.
func (e *Engine) commitDiff(ctx context.Context, rev string) (*gitsage.RawDiff, error) {
	commit, err := e.repo.ResolveCommit(rev)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree of %s: %w", commit.Hash, err)
	}

	parentTree := &object.Tree{}
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("load parent of %s: %w", commit.Hash, err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, fmt.Errorf("load tree of %s: %w", parent.Hash, err)
		}
	}

	patch, err := parentTree.PatchContext(ctx, tree)
	if err != nil {
		return nil, fmt.Errorf("compute patch: %w", err)
	}
	var buf bytes.Buffer
	if err := diff.NewUnifiedEncoder(&buf, e.contextLines).Encode(patch); err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}

	stats := gitsage.DiffStats{FilesChanged: len(patch.FilePatches())}
	for _, fs := range patch.Stats() {
		stats.Insertions += fs.Addition
		stats.Deletions += fs.Deletion
	}
	return &gitsage.RawDiff{Patch: buf.Bytes(), Stats: stats}, nil
}
