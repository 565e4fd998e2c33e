package bubbletea

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// tabWidth is the standard terminal tab stop interval.
const tabWidth = 8

// DisplayWidth calculates the display width of a string, expanding tab
// characters to the next 8-column boundary.
func DisplayWidth(s string) int {
	return lipgloss.Width(ExpandTabs(s, 0))
}

// Truncate shortens s to at most width display columns, marking the cut
// with an ellipsis. Tabs are expanded first.
func Truncate(s string, width int) string {
	s = ExpandTabs(s, 0)
	if DisplayWidth(s) <= width {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		w := lipgloss.Width(string(r))
		if col+w > width-1 {
			break
		}
		b.WriteRune(r)
		col += w
	}
	b.WriteString("…")
	return b.String()
}

// ExpandTabs replaces tabs with spaces as a terminal would render them when
// s starts at column startCol. The viewport measures lines with
// lipgloss.Width, which counts a tab as zero columns.
func ExpandTabs(s string, startCol int) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := startCol
	for _, r := range s {
		if r == '\t' {
			next := ((col / tabWidth) + 1) * tabWidth
			b.WriteString(strings.Repeat(" ", next-col))
			col = next
			continue
		}
		b.WriteRune(r)
		col += lipgloss.Width(string(r))
	}
	return b.String()
}
