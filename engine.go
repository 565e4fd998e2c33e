package gitsage

import (
	"context"
	"fmt"
)

// DiffMode selects which two snapshots a diff compares.
type DiffMode int

// Comparison modes.
const (
	ModeStaged   DiffMode = iota // HEAD tree to index
	ModeUnstaged                 // index to working directory
	ModeCommit                   // first parent tree (or empty tree) to commit tree
	ModeWorkdir                  // HEAD tree to working directory merged with index
)

func (m DiffMode) String() string {
	switch m {
	case ModeStaged:
		return "staged"
	case ModeUnstaged:
		return "unstaged"
	case ModeCommit:
		return "commit"
	case ModeWorkdir:
		return "workdir"
	default:
		return fmt.Sprintf("DiffMode(%d)", int(m))
	}
}

// DiffRequest describes one engine diff query.
type DiffRequest struct {
	Mode   DiffMode
	Path   string // optional path filter
	Commit string // revision for ModeCommit
}

// RawDiff is the engine's output: its unified diff stream and its own
// aggregate summary.
type RawDiff struct {
	Patch []byte
	Stats DiffStats
}

// Engine produces raw diffs for a repository.
type Engine interface {
	// Diff compares the snapshots selected by req.
	Diff(ctx context.Context, req DiffRequest) (*RawDiff, error)
}

// Parser converts engine output into the structural diff model.
type Parser interface {
	// Parse builds a DiffOutput from raw without modifying it.
	Parse(raw *RawDiff) (*DiffOutput, error)
}

// ApplyOptions are the flags understood by an Applier.
type ApplyOptions struct {
	Cached  bool // apply to the index instead of the working tree
	Reverse bool // invert the patch's effect
}

// Applier applies generated patch text to a repository.
type Applier interface {
	// Apply applies patch. A rejected patch yields an *ApplyError.
	Apply(ctx context.Context, patch string, opts ApplyOptions) error
}
