package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/gitsage/gitsage"
)

// writeText prints out as a plain unified diff followed by a summary line.
func writeText(w io.Writer, out *gitsage.DiffOutput) error {
	bw := bufio.NewWriter(w)
	if out != nil {
		for _, f := range out.Files {
			writeFileText(bw, f)
		}
	}
	if !out.IsEmpty() {
		s := out.Stats
		fmt.Fprintf(bw, " %d files changed, %d insertions(+), %d deletions(-)\n", s.FilesChanged, s.Insertions, s.Deletions)
	}
	return bw.Flush()
}

func writeFileText(w *bufio.Writer, f gitsage.DiffFile) {
	oldName, newName := "a/"+f.OldPath, "b/"+f.NewPath
	if f.IsAdded() {
		oldName = "/dev/null"
	}
	if f.IsDeleted() {
		newName = "/dev/null"
	}
	fmt.Fprintf(w, "diff %s\n", f.Path())
	if f.IsBinary {
		fmt.Fprintf(w, "Binary files %s and %s differ\n", oldName, newName)
		return
	}
	fmt.Fprintf(w, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range f.Hunks {
		header := strings.TrimRight(h.Header, "\r\n")
		if header == "" {
			header = fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
		}
		fmt.Fprintln(w, header)
		for _, l := range h.Lines {
			prefix := " "
			switch l.Origin {
			case gitsage.Addition:
				prefix = "+"
			case gitsage.Deletion:
				prefix = "-"
			}
			w.WriteString(prefix)
			w.WriteString(l.Content)
			if !strings.HasSuffix(l.Content, "\n") {
				w.WriteString("\n")
			}
		}
	}
}
