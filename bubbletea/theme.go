package bubbletea

import "github.com/charmbracelet/lipgloss"

// Theme holds the colors used to render a diff.
type Theme struct {
	Added      lipgloss.Color
	Deleted    lipgloss.Color
	Context    lipgloss.Color
	LineNumber lipgloss.Color
	FileHeader lipgloss.Color
	HunkHeader lipgloss.Color
	Cursor     lipgloss.Color
	Selected   lipgloss.Color
	Error      lipgloss.Color
}

// DarkTheme suits dark terminal backgrounds.
func DarkTheme() Theme {
	return Theme{
		Added:      "#98c379",
		Deleted:    "#e06c75",
		Context:    "#abb2bf",
		LineNumber: "#5c6370",
		FileHeader: "#61afef",
		HunkHeader: "#c678dd",
		Cursor:     "#e5c07b",
		Selected:   "#56b6c2",
		Error:      "#ff5555",
	}
}

// LightTheme suits light terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Added:      "#22863a",
		Deleted:    "#b31d28",
		Context:    "#24292e",
		LineNumber: "#6a737d",
		FileHeader: "#005cc5",
		HunkHeader: "#6f42c1",
		Cursor:     "#b08800",
		Selected:   "#0366d6",
		Error:      "#cb2431",
	}
}

// ThemeByName returns LightTheme for "light" and DarkTheme otherwise.
func ThemeByName(name string) Theme {
	if name == "light" {
		return LightTheme()
	}
	return DarkTheme()
}

type styles struct {
	added, deleted, context lipgloss.Style
	lineNumber              lipgloss.Style
	fileHeader, hunkHeader  lipgloss.Style
	cursor, selected        lipgloss.Style
	status, err             lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, t Theme) styles {
	return styles{
		added:      r.NewStyle().Foreground(t.Added),
		deleted:    r.NewStyle().Foreground(t.Deleted),
		context:    r.NewStyle().Foreground(t.Context),
		lineNumber: r.NewStyle().Foreground(t.LineNumber),
		fileHeader: r.NewStyle().Foreground(t.FileHeader).Bold(true),
		hunkHeader: r.NewStyle().Foreground(t.HunkHeader),
		cursor:     r.NewStyle().Foreground(t.Cursor).Bold(true),
		selected:   r.NewStyle().Foreground(t.Selected).Bold(true),
		status:     r.NewStyle().Foreground(t.LineNumber),
		err:        r.NewStyle().Foreground(t.Error).Bold(true),
	}
}
