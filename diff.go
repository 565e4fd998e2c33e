// Package gitsage provides domain types for reading, staging and annotating
// repository diffs.
package gitsage

import "fmt"

// DiffOutput is the structural result of one diff query.
type DiffOutput struct {
	Files []DiffFile `json:"files"`
	Stats DiffStats  `json:"stats"`
}

// DiffStats holds the aggregate counts reported by the diff engine.
type DiffStats struct {
	FilesChanged int `json:"files_changed"`
	Insertions   int `json:"insertions"`
	Deletions    int `json:"deletions"`
}

// DiffFile represents changes to a single file.
type DiffFile struct {
	OldPath  string     `json:"old_path,omitempty"` // empty for added files
	NewPath  string     `json:"new_path,omitempty"` // empty for deleted files
	Hunks    []DiffHunk `json:"hunks"`              // empty for binary files
	IsBinary bool       `json:"is_binary"`
}

// DiffHunk represents a contiguous block of changes within a file.
type DiffHunk struct {
	OldStart int        `json:"old_start"`
	OldLines int        `json:"old_lines"`
	NewStart int        `json:"new_start"`
	NewLines int        `json:"new_lines"`
	Header   string     `json:"header"` // raw "@@ ... @@" text, informational only
	Lines    []DiffLine `json:"lines"`
}

// DiffLine represents a single line within a hunk.
type DiffLine struct {
	Origin    DiffLineType `json:"origin"`
	Content   string       `json:"content"`
	OldLineno int          `json:"old_lineno,omitempty"` // 0 if line is an Addition
	NewLineno int          `json:"new_lineno,omitempty"` // 0 if line is a Deletion
	Lossy     bool         `json:"lossy,omitempty"`      // Content had invalid UTF-8 replaced
}

// DiffLineType represents the origin of a diff line.
type DiffLineType int

// Line origins.
const (
	Context DiffLineType = iota
	Addition
	Deletion
	Header
)

var lineTypeNames = [...]string{
	Context:  "Context",
	Addition: "Addition",
	Deletion: "Deletion",
	Header:   "Header",
}

func (t DiffLineType) String() string {
	if t < 0 || int(t) >= len(lineTypeNames) {
		return fmt.Sprintf("DiffLineType(%d)", int(t))
	}
	return lineTypeNames[t]
}

// MarshalText encodes the origin by name.
func (t DiffLineType) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(lineTypeNames) {
		return nil, fmt.Errorf("invalid line origin %d", int(t))
	}
	return []byte(lineTypeNames[t]), nil
}

// UnmarshalText decodes an origin name.
func (t *DiffLineType) UnmarshalText(b []byte) error {
	for i, name := range lineTypeNames {
		if name == string(b) {
			*t = DiffLineType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown line origin %q", b)
}

// Path returns the path a caller should use to address the file: the new
// path, or the old path for deletions.
func (f DiffFile) Path() string {
	if f.NewPath != "" {
		return f.NewPath
	}
	return f.OldPath
}

// IsAdded reports whether the file did not exist on the old side.
func (f DiffFile) IsAdded() bool { return f.OldPath == "" && f.NewPath != "" }

// IsDeleted reports whether the file does not exist on the new side.
func (f DiffFile) IsDeleted() bool { return f.NewPath == "" && f.OldPath != "" }

// IsRenamed reports whether both sides exist under different paths.
func (f DiffFile) IsRenamed() bool {
	return f.OldPath != "" && f.NewPath != "" && f.OldPath != f.NewPath
}

// Hunk returns the hunk at index i.
func (f DiffFile) Hunk(i int) (DiffHunk, error) {
	if i < 0 || i >= len(f.Hunks) {
		return DiffHunk{}, fmt.Errorf("%w: hunk %d of %d in %s", ErrHunkIndexOutOfRange, i, len(f.Hunks), f.Path())
	}
	return f.Hunks[i], nil
}

// FindFile returns the file whose old or new path equals path.
func (o *DiffOutput) FindFile(path string) (DiffFile, error) {
	if o != nil {
		for _, f := range o.Files {
			if f.NewPath == path || f.OldPath == path {
				return f, nil
			}
		}
	}
	return DiffFile{}, fmt.Errorf("%w: %s", ErrNoDiffFound, path)
}

// IsEmpty reports whether the output carries no file changes.
func (o *DiffOutput) IsEmpty() bool { return o == nil || len(o.Files) == 0 }

// Counts returns the number of context+deletion and context+addition lines,
// the values OldLines and NewLines must equal.
func (h DiffHunk) Counts() (oldLines, newLines int) {
	for _, l := range h.Lines {
		switch l.Origin {
		case Context:
			oldLines++
			newLines++
		case Deletion:
			oldLines++
		case Addition:
			newLines++
		}
	}
	return oldLines, newLines
}

// IsLossy reports whether any line's content was altered while decoding.
// Patches built from such a hunk would not reproduce the file's bytes.
func (h DiffHunk) IsLossy() bool {
	for _, l := range h.Lines {
		if l.Lossy {
			return true
		}
	}
	return false
}

// ChangeType classifies a gutter range.
type ChangeType int

// Gutter change types.
const (
	Added ChangeType = iota
	Modified
	Deleted
)

var changeTypeNames = [...]string{
	Added:    "Added",
	Modified: "Modified",
	Deleted:  "Deleted",
}

func (c ChangeType) String() string {
	if c < 0 || int(c) >= len(changeTypeNames) {
		return fmt.Sprintf("ChangeType(%d)", int(c))
	}
	return changeTypeNames[c]
}

// MarshalText encodes the change type by name.
func (c ChangeType) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(changeTypeNames) {
		return nil, fmt.Errorf("invalid change type %d", int(c))
	}
	return []byte(changeTypeNames[c]), nil
}

// UnmarshalText decodes a change type name.
func (c *ChangeType) UnmarshalText(b []byte) error {
	for i, name := range changeTypeNames {
		if name == string(b) {
			*c = ChangeType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown change type %q", b)
}

// LineChange is a contiguous range of changed lines for editor gutters.
// Added ranges and the end of Modified ranges use new-file numbering;
// Deleted ranges and the start of Modified ranges use old-file numbering.
type LineChange struct {
	StartLine  int        `json:"start_line"`
	EndLine    int        `json:"end_line"`
	ChangeType ChangeType `json:"change_type"`
}
