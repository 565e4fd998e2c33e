// Package session serializes all diff, synthesis and apply operations on one
// open repository.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gitsage/gitsage"
	"github.com/gitsage/gitsage/gitcli"
	"github.com/gitsage/gitsage/gitdiff"
	"github.com/gitsage/gitsage/gogit"
	"github.com/gitsage/gitsage/logging"
	"golang.org/x/sync/semaphore"
)

// Session owns exclusive access to one repository. At most one operation
// runs at a time; an apply and the diff it was generated from share one hold.
type Session struct {
	root    string
	sem     *semaphore.Weighted
	engine  gitsage.Engine
	parser  gitsage.Parser
	applier gitsage.Applier
	refs    RefResolver
	logger  *slog.Logger
	closed  bool // guarded by sem
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// RefResolver names what HEAD points at.
type RefResolver interface {
	CurrentRef() (string, error)
}

// WithRefResolver sets the source of CurrentRef.
func WithRefResolver(r RefResolver) Option {
	return func(s *Session) { s.refs = r }
}

// New creates a session over the given collaborators.
func New(root string, engine gitsage.Engine, parser gitsage.Parser, applier gitsage.Applier, opts ...Option) *Session {
	s := &Session{
		root:    root,
		sem:     semaphore.NewWeighted(1),
		engine:  engine,
		parser:  parser,
		applier: applier,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config selects the git binary and diff shape for Open. Zero context lines
// produce hunks without context and applies that accept them.
type Config struct {
	GitBinary    string
	ContextLines int
	Logger       *slog.Logger
}

// Open opens the repository containing path. Commit diffs come from go-git;
// index and work tree diffs and all applies go through the git binary.
func Open(path string, cfg Config) (*Session, error) {
	repo, err := gogit.Open(path)
	if err != nil {
		return nil, err
	}
	runner := gitcli.NewExecRunner(cfg.GitBinary)
	cli := gitcli.NewEngine(repo.Root(),
		gitcli.WithRunner(runner),
		gitcli.WithContextLines(cfg.ContextLines),
	)
	engine := gogit.NewEngine(repo, cli, gogit.WithContextLines(cfg.ContextLines))
	parser := gitdiff.NewParser(gitdiff.WithLogger(cfg.Logger))
	var applyOpts []gitcli.ApplierOption
	if cfg.ContextLines == 0 {
		applyOpts = append(applyOpts, gitcli.WithUnidiffZero())
	}
	applier := gitcli.NewApplier(repo.Root(), runner, applyOpts...)
	s := New(repo.Root(), engine, parser, applier, WithLogger(cfg.Logger), WithRefResolver(repo))
	s.logger.Debug("repository opened", "root", s.root)
	return s, nil
}

// Root returns the work tree root.
func (s *Session) Root() string { return s.root }

// Close releases the repository. Later calls return gitsage.ErrNoRepository.
func (s *Session) Close() error {
	if err := s.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	s.closed = true
	return nil
}

// exclusive runs fn while holding the repository.
func (s *Session) exclusive(ctx context.Context, fn func() error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	if s.closed {
		return gitsage.ErrNoRepository
	}
	return fn()
}

// diff queries the engine and parses its output. Callers hold the repository.
func (s *Session) diff(ctx context.Context, req gitsage.DiffRequest) (*gitsage.DiffOutput, error) {
	s.logger.Debug("diff", "mode", req.Mode.String(), "path", req.Path, "commit", req.Commit)
	raw, err := s.engine.Diff(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.parser.Parse(raw)
}

func (s *Session) query(ctx context.Context, req gitsage.DiffRequest) (*gitsage.DiffOutput, error) {
	var out *gitsage.DiffOutput
	err := s.exclusive(ctx, func() error {
		var err error
		out, err = s.diff(ctx, req)
		return err
	})
	return out, err
}

// Diff returns the staged or unstaged diff of a single path.
func (s *Session) Diff(ctx context.Context, path string, staged bool) (*gitsage.DiffOutput, error) {
	return s.query(ctx, gitsage.DiffRequest{Mode: modeFor(staged), Path: path})
}

// StagedDiff returns every change between HEAD and the index.
func (s *Session) StagedDiff(ctx context.Context) (*gitsage.DiffOutput, error) {
	return s.query(ctx, gitsage.DiffRequest{Mode: gitsage.ModeStaged})
}

// UnstagedDiff returns every change between the index and the work tree.
func (s *Session) UnstagedDiff(ctx context.Context) (*gitsage.DiffOutput, error) {
	return s.query(ctx, gitsage.DiffRequest{Mode: gitsage.ModeUnstaged})
}

// CommitDiff returns the diff a commit introduced against its first parent.
func (s *Session) CommitDiff(ctx context.Context, commit string) (*gitsage.DiffOutput, error) {
	return s.query(ctx, gitsage.DiffRequest{Mode: gitsage.ModeCommit, Commit: commit})
}

// LineChanges returns gutter ranges for path covering both staged and
// unstaged edits relative to HEAD.
func (s *Session) LineChanges(ctx context.Context, path string) ([]gitsage.LineChange, error) {
	out, err := s.query(ctx, gitsage.DiffRequest{Mode: gitsage.ModeWorkdir, Path: path})
	if err != nil {
		return nil, err
	}
	return gitsage.ClassifyLines(out), nil
}

// CurrentRef returns the checked-out branch, or the commit hash when HEAD is
// detached. It is empty for sessions without a RefResolver.
func (s *Session) CurrentRef(ctx context.Context) (string, error) {
	var ref string
	err := s.exclusive(ctx, func() error {
		if s.refs == nil {
			return nil
		}
		var err error
		ref, err = s.refs.CurrentRef()
		return err
	})
	return ref, err
}

func modeFor(staged bool) gitsage.DiffMode {
	if staged {
		return gitsage.ModeStaged
	}
	return gitsage.ModeUnstaged
}

// lookupHunk diffs path in mode and returns the file and the requested hunk.
// Hunks with replaced content are refused; every caller synthesizes a patch
// from the result. Callers hold the repository.
func (s *Session) lookupHunk(ctx context.Context, mode gitsage.DiffMode, path string, index int) (gitsage.DiffFile, gitsage.DiffHunk, error) {
	out, err := s.diff(ctx, gitsage.DiffRequest{Mode: mode, Path: path})
	if err != nil {
		return gitsage.DiffFile{}, gitsage.DiffHunk{}, err
	}
	file, err := out.FindFile(path)
	if err != nil {
		return gitsage.DiffFile{}, gitsage.DiffHunk{}, err
	}
	hunk, err := file.Hunk(index)
	if err != nil {
		return gitsage.DiffFile{}, gitsage.DiffHunk{}, err
	}
	if hunk.IsLossy() {
		return gitsage.DiffFile{}, gitsage.DiffHunk{}, fmt.Errorf("%w: hunk %d of %s", gitsage.ErrLossyContent, index, file.Path())
	}
	return file, hunk, nil
}

// HunkPatch returns the patch text for one hunk of path without applying it.
func (s *Session) HunkPatch(ctx context.Context, path string, staged bool, hunk int, reverse bool) (string, error) {
	var patch string
	err := s.exclusive(ctx, func() error {
		file, h, err := s.lookupHunk(ctx, modeFor(staged), path, hunk)
		if err != nil {
			return err
		}
		patch = gitsage.GenerateHunkPatch(file.Path(), h, reverse)
		return nil
	})
	return patch, err
}

// LinePatch returns the patch text for selected lines of one hunk of path
// without applying it.
func (s *Session) LinePatch(ctx context.Context, path string, staged bool, hunk int, lines []int, reverse bool) (string, error) {
	var patch string
	err := s.exclusive(ctx, func() error {
		file, h, err := s.lookupHunk(ctx, modeFor(staged), path, hunk)
		if err != nil {
			return err
		}
		if err := gitsage.ValidateLineSelection(h, lines); err != nil {
			return err
		}
		patch = gitsage.GenerateLinePatch(file.Path(), h, lines, reverse)
		return nil
	})
	return patch, err
}

// action describes one patch-based mutation: which diff the hunk is taken
// from, which direction the patch is synthesized in and how it is applied.
type action struct {
	name    string
	mode    gitsage.DiffMode
	reverse bool
	apply   gitsage.ApplyOptions
}

var (
	stageAction   = action{name: "stage", mode: gitsage.ModeUnstaged, apply: gitsage.ApplyOptions{Cached: true}}
	unstageAction = action{name: "unstage", mode: gitsage.ModeStaged, reverse: true, apply: gitsage.ApplyOptions{Cached: true}}
	discardAction = action{name: "discard", mode: gitsage.ModeUnstaged, apply: gitsage.ApplyOptions{Reverse: true}}
)

// StageHunk adds one unstaged hunk of path to the index.
func (s *Session) StageHunk(ctx context.Context, path string, hunk int) error {
	return s.applyHunk(ctx, stageAction, path, hunk)
}

// UnstageHunk removes one staged hunk of path from the index.
func (s *Session) UnstageHunk(ctx context.Context, path string, hunk int) error {
	return s.applyHunk(ctx, unstageAction, path, hunk)
}

// DiscardHunk reverts one unstaged hunk of path in the work tree.
func (s *Session) DiscardHunk(ctx context.Context, path string, hunk int) error {
	return s.applyHunk(ctx, discardAction, path, hunk)
}

// StageLines adds selected lines of one unstaged hunk to the index.
func (s *Session) StageLines(ctx context.Context, path string, hunk int, lines []int) error {
	return s.applyLines(ctx, stageAction, path, hunk, lines)
}

// UnstageLines removes selected lines of one staged hunk from the index.
func (s *Session) UnstageLines(ctx context.Context, path string, hunk int, lines []int) error {
	return s.applyLines(ctx, unstageAction, path, hunk, lines)
}

// DiscardLines reverts selected lines of one unstaged hunk in the work tree.
func (s *Session) DiscardLines(ctx context.Context, path string, hunk int, lines []int) error {
	return s.applyLines(ctx, discardAction, path, hunk, lines)
}

func (s *Session) applyHunk(ctx context.Context, act action, path string, index int) error {
	return s.exclusive(ctx, func() error {
		file, h, err := s.lookupHunk(ctx, act.mode, path, index)
		if err != nil {
			return err
		}
		patch := gitsage.GenerateHunkPatch(file.Path(), h, act.reverse)
		return s.apply(ctx, act, file.Path(), index, patch)
	})
}

func (s *Session) applyLines(ctx context.Context, act action, path string, index int, lines []int) error {
	return s.exclusive(ctx, func() error {
		file, h, err := s.lookupHunk(ctx, act.mode, path, index)
		if err != nil {
			return err
		}
		if err := gitsage.ValidateLineSelection(h, lines); err != nil {
			return err
		}
		if !selectsChange(h, lines) {
			s.logger.Debug("selection has no changed lines", "op", act.name, "path", file.Path(), "hunk", index)
			return nil
		}
		patch := gitsage.GenerateLinePatch(file.Path(), h, lines, act.reverse)
		return s.apply(ctx, act, file.Path(), index, patch)
	})
}

func (s *Session) apply(ctx context.Context, act action, path string, index int, patch string) error {
	s.logger.Debug("apply patch",
		"op", act.name,
		"path", path,
		"hunk", index,
		"cached", act.apply.Cached,
		"reverse", act.apply.Reverse,
	)
	if err := s.applier.Apply(ctx, patch, act.apply); err != nil {
		s.logger.Warn("apply rejected", "op", act.name, "path", path, "hunk", index, "error", err)
		return fmt.Errorf("%s %s: %w", act.name, path, err)
	}
	return nil
}

// selectsChange reports whether any selected line is an addition or deletion.
func selectsChange(h gitsage.DiffHunk, lines []int) bool {
	for _, idx := range lines {
		switch h.Lines[idx].Origin {
		case gitsage.Addition, gitsage.Deletion:
			return true
		}
	}
	return false
}
