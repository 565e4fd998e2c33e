package gitsage

import (
	"errors"
	"fmt"
	"strings"
)

// Request errors. They are wrapped with the offending path or index, so match
// them with errors.Is.
var (
	// ErrNoDiffFound means the requested file has no diff in the requested mode.
	ErrNoDiffFound = errors.New("no diff found")
	// ErrHunkIndexOutOfRange means the hunk index is not in the current diff.
	ErrHunkIndexOutOfRange = errors.New("hunk index out of range")
	// ErrInvalidLineSelection means a selected line index is not in the hunk.
	ErrInvalidLineSelection = errors.New("invalid line selection")
	// ErrLossyContent means a hunk's text was not valid UTF-8 and cannot be
	// turned back into a patch.
	ErrLossyContent = errors.New("hunk content is not valid utf-8")
	// ErrNoRepository means no repository is open, either because the path
	// is outside any repository or because the session was closed.
	ErrNoRepository = errors.New("no repository opened")
)

// EngineError reports a failure of the underlying diff engine.
type EngineError struct {
	Op  string // engine operation, e.g. "diff", "shortstat", "parse"
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// ApplyError reports that the apply tool rejected a patch. Output is the
// tool's diagnostic text, unmodified.
type ApplyError struct {
	Output string
	Err    error
}

func (e *ApplyError) Error() string {
	msg := strings.TrimSpace(e.Output)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return "apply failed: " + msg
}

func (e *ApplyError) Unwrap() error { return e.Err }
