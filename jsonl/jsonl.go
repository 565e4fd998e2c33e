// Package jsonl writes and reads diff snapshots as JSON Lines: one record
// per file followed by one stats record.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gitsage/gitsage"
)

// Record is one line of a diff snapshot. Exactly one field is set.
type Record struct {
	File       *gitsage.DiffFile   `json:"file,omitempty"`
	Stats      *gitsage.DiffStats  `json:"stats,omitempty"`
	LineChange *gitsage.LineChange `json:"line_change,omitempty"`
}

// maxLineSize bounds a single record; large generated files can exceed the
// default scanner buffer.
const maxLineSize = 64 * 1024 * 1024

// Writer encodes records, one per line.
type Writer struct {
	enc *json.Encoder
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer{enc: enc}
}

// WriteDiff writes one record per file and a trailing stats record.
func (w *Writer) WriteDiff(out *gitsage.DiffOutput) error {
	if out == nil {
		out = &gitsage.DiffOutput{}
	}
	for i := range out.Files {
		if err := w.enc.Encode(Record{File: &out.Files[i]}); err != nil {
			return fmt.Errorf("encode file %s: %w", out.Files[i].Path(), err)
		}
	}
	stats := out.Stats
	return w.enc.Encode(Record{Stats: &stats})
}

// WriteLineChanges writes one record per gutter range.
func (w *Writer) WriteLineChanges(changes []gitsage.LineChange) error {
	for i := range changes {
		if err := w.enc.Encode(Record{LineChange: &changes[i]}); err != nil {
			return fmt.Errorf("encode line change: %w", err)
		}
	}
	return nil
}

// Loader reads diff snapshots written by Writer.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the snapshot file at path.
func (l *Loader) Load(path string) (*gitsage.DiffOutput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return l.LoadDiff(f)
}

// LoadDiff rebuilds a DiffOutput from r. Blank lines are skipped.
func (l *Loader) LoadDiff(r io.Reader) (*gitsage.DiffOutput, error) {
	out := &gitsage.DiffOutput{Files: []gitsage.DiffFile{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		switch {
		case rec.File != nil:
			out.Files = append(out.Files, *rec.File)
		case rec.Stats != nil:
			out.Stats = *rec.Stats
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return out, nil
}
