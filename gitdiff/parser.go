// Package gitdiff implements diff parsing using bluekeyes/go-gitdiff.
package gitdiff

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/gitsage/gitsage"
	"github.com/gitsage/gitsage/logging"
)

// Compile-time interface verification.
var _ gitsage.Parser = (*Parser)(nil)

// Parser converts the unified diff stream produced by a diff engine into
// the gitsage diff model.
type Parser struct {
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used to report lossy content decoding.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewParser creates a new Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: logging.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes raw.Patch and returns the parsed result. Stats are copied
// from the engine summary, not recomputed.
func (p *Parser) Parse(raw *gitsage.RawDiff) (*gitsage.DiffOutput, error) {
	if raw == nil {
		return &gitsage.DiffOutput{Files: []gitsage.DiffFile{}}, nil
	}

	files, _, err := gitdiff.Parse(bytes.NewReader(raw.Patch))
	if err != nil {
		return nil, &gitsage.EngineError{Op: "parse", Err: err}
	}

	out := &gitsage.DiffOutput{
		Files: make([]gitsage.DiffFile, 0, len(files)),
		Stats: raw.Stats,
	}
	for _, f := range files {
		file, lossy, err := convertFile(f)
		if err != nil {
			return nil, &gitsage.EngineError{Op: "parse", Err: err}
		}
		if lossy > 0 {
			p.logger.Warn("invalid utf-8 replaced in diff content",
				"path", file.Path(),
				"lines", lossy,
			)
		}
		out.Files = append(out.Files, file)
	}
	return out, nil
}

func convertFile(f *gitdiff.File) (gitsage.DiffFile, int, error) {
	fd := gitsage.DiffFile{
		OldPath:  f.OldName,
		NewPath:  f.NewName,
		IsBinary: f.IsBinary,
		Hunks:    []gitsage.DiffHunk{},
	}
	// go-gitdiff sets both names for plain modifications; it leaves the
	// absent side empty for creations and deletions.
	if f.IsNew {
		fd.OldPath = ""
	}
	if f.IsDelete {
		fd.NewPath = ""
	}
	if fd.IsBinary {
		return fd, 0, nil
	}

	var lossy int
	fd.Hunks = make([]gitsage.DiffHunk, 0, len(f.TextFragments))
	for _, frag := range f.TextFragments {
		hunk, n := convertFragment(frag)
		lossy += n
		oldLines, newLines := hunk.Counts()
		if oldLines != hunk.OldLines || newLines != hunk.NewLines {
			return fd, 0, fmt.Errorf("%s: hunk %q has %d old and %d new lines",
				fd.Path(), strings.TrimSpace(hunk.Header), oldLines, newLines)
		}
		fd.Hunks = append(fd.Hunks, hunk)
	}
	return fd, lossy, nil
}

func convertFragment(frag *gitdiff.TextFragment) (gitsage.DiffHunk, int) {
	hunk := gitsage.DiffHunk{
		OldStart: int(frag.OldPosition),
		OldLines: int(frag.OldLines),
		NewStart: int(frag.NewPosition),
		NewLines: int(frag.NewLines),
		Header:   frag.Header(),
		Lines:    make([]gitsage.DiffLine, 0, len(frag.Lines)),
	}

	// Track line numbers for old and new files
	oldLineNum := int(frag.OldPosition)
	newLineNum := int(frag.NewPosition)

	var lossy int
	for _, l := range frag.Lines {
		line := gitsage.DiffLine{Content: l.Line}
		if !utf8.ValidString(l.Line) {
			line.Content = strings.ToValidUTF8(l.Line, string(utf8.RuneError))
			line.Lossy = true
			lossy++
		}

		switch l.Op {
		case gitdiff.OpAdd:
			line.Origin = gitsage.Addition
			line.NewLineno = newLineNum
			newLineNum++
		case gitdiff.OpDelete:
			line.Origin = gitsage.Deletion
			line.OldLineno = oldLineNum
			oldLineNum++
		default:
			line.Origin = gitsage.Context
			line.OldLineno = oldLineNum
			line.NewLineno = newLineNum
			oldLineNum++
			newLineNum++
		}

		hunk.Lines = append(hunk.Lines, line)
	}

	return hunk, lossy
}
