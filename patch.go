package gitsage

import (
	"fmt"
	"strings"
)

// emission describes how one hunk line is written into a synthesized patch
// and which side counters it advances.
type emission struct {
	prefix byte
	old    int
	new    int
}

type emissionKey struct {
	origin   DiffLineType
	reverse  bool
	selected bool
}

var (
	emitContext = emission{prefix: ' ', old: 1, new: 1}
	emitAdd     = emission{prefix: '+', new: 1}
	emitRemove  = emission{prefix: '-', old: 1}
)

// lineEmissions is the origin × reverse × selected table used for line
// patches. Whole-hunk patches use the selected rows. Header lines have no
// entry and are never emitted.
var lineEmissions = map[emissionKey]emission{
	{Context, false, false}: emitContext,
	{Context, false, true}:  emitContext,
	{Context, true, false}:  emitContext,
	{Context, true, true}:   emitContext,

	{Addition, false, true}: emitAdd,
	{Deletion, true, true}:  emitAdd,

	// Unselected additions stay in the patch as context.
	{Addition, false, false}: emitContext,
	{Deletion, true, false}:  emitContext,

	{Deletion, false, true}: emitRemove,
	{Addition, true, true}:  emitRemove,

	{Deletion, false, false}: emitContext,
	{Addition, true, false}:  emitContext,
}

func lookupEmission(origin DiffLineType, reverse, selected bool) (emission, bool) {
	e, ok := lineEmissions[emissionKey{origin: origin, reverse: reverse, selected: selected}]
	return e, ok
}

// GenerateHunkPatch renders hunk as a single-hunk unified diff for path.
// With reverse set the patch undoes the hunk: additions become removals,
// deletions become additions and the old/new ranges swap.
func GenerateHunkPatch(path string, hunk DiffHunk, reverse bool) string {
	var b strings.Builder
	writeFileHeader(&b, path)
	if reverse {
		writeHunkHeader(&b, hunk.NewStart, hunk.NewLines, hunk.OldStart, hunk.OldLines)
	} else {
		writeHunkHeader(&b, hunk.OldStart, hunk.OldLines, hunk.NewStart, hunk.NewLines)
	}
	for _, line := range hunk.Lines {
		e, ok := lookupEmission(line.Origin, reverse, true)
		if !ok {
			continue
		}
		writeLine(&b, e.prefix, line.Content)
	}
	return b.String()
}

// GenerateLinePatch renders the lines of hunk selected by index as a
// single-hunk unified diff for path. Unselected changes are written as
// context. The header counts are recomputed from the emitted lines and the
// start positions swap when reverse is set.
//
// Selected indices are not validated here; see ValidateLineSelection.
func GenerateLinePatch(path string, hunk DiffHunk, selected []int, reverse bool) string {
	isSelected := make(map[int]bool, len(selected))
	for _, idx := range selected {
		isSelected[idx] = true
	}

	var body strings.Builder
	var oldCount, newCount int
	for idx, line := range hunk.Lines {
		e, ok := lookupEmission(line.Origin, reverse, isSelected[idx])
		if !ok {
			continue
		}
		oldCount += e.old
		newCount += e.new
		writeLine(&body, e.prefix, line.Content)
	}

	var b strings.Builder
	writeFileHeader(&b, path)
	if reverse {
		writeHunkHeader(&b, hunk.NewStart, oldCount, hunk.OldStart, newCount)
	} else {
		writeHunkHeader(&b, hunk.OldStart, oldCount, hunk.NewStart, newCount)
	}
	b.WriteString(body.String())
	return b.String()
}

// ValidateLineSelection checks that every selected index addresses a line of hunk.
func ValidateLineSelection(hunk DiffHunk, selected []int) error {
	for _, idx := range selected {
		if idx < 0 || idx >= len(hunk.Lines) {
			return fmt.Errorf("%w: line %d of %d", ErrInvalidLineSelection, idx, len(hunk.Lines))
		}
	}
	return nil
}

func writeFileHeader(b *strings.Builder, path string) {
	fmt.Fprintf(b, "--- a/%s\n", path)
	fmt.Fprintf(b, "+++ b/%s\n", path)
}

func writeHunkHeader(b *strings.Builder, oldStart, oldCount, newStart, newCount int) {
	fmt.Fprintf(b, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
}

func writeLine(b *strings.Builder, prefix byte, content string) {
	b.WriteByte(prefix)
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteByte('\n')
	}
}
