package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gitsage/gitsage"
)

// Repository is the set of staging operations the model drives.
// session.Session satisfies it.
type Repository interface {
	CurrentRef(ctx context.Context) (string, error)
	StagedDiff(ctx context.Context) (*gitsage.DiffOutput, error)
	UnstagedDiff(ctx context.Context) (*gitsage.DiffOutput, error)
	StageHunk(ctx context.Context, path string, hunk int) error
	UnstageHunk(ctx context.Context, path string, hunk int) error
	DiscardHunk(ctx context.Context, path string, hunk int) error
	StageLines(ctx context.Context, path string, hunk int, lines []int) error
	UnstageLines(ctx context.Context, path string, hunk int, lines []int) error
	DiscardLines(ctx context.Context, path string, hunk int, lines []int) error
}

// footerHeight is the status line plus the help line.
const footerHeight = 2

// lineOverhead is the width of the cursor marker, the two line number
// columns and the origin prefix in front of line content.
const lineOverhead = 2 + 10 + 1

type rowKind int

const (
	rowFile rowKind = iota
	rowHunk
	rowLine
)

type row struct {
	kind rowKind
	file int
	hunk int
	line int
}

// lineRef identifies a diff line by file, hunk and line index.
type lineRef struct {
	file, hunk, line int
}

type diffLoadedMsg struct {
	diff *gitsage.DiffOutput
	ref  string
	err  error
}

type actionDoneMsg struct {
	status string
	err    error
}

// Model is the Bubble Tea model for the interactive stager.
type Model struct {
	repo   Repository
	staged bool
	ref    string

	diff     *gitsage.DiffOutput
	rows     []row
	cursor   int
	selected map[lineRef]bool

	keys     keyMap
	help     help.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	status string
	err    error

	renderer  *lipgloss.Renderer
	theme     Theme
	styles    styles
	tokenizer gitsage.Tokenizer
	detector  gitsage.LanguageDetector
	copyFn    func(string) error
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithRepository makes the model interactive. The diff is reloaded from repo
// on start and after every action.
func WithRepository(repo Repository) ModelOption {
	return func(m *Model) { m.repo = repo }
}

// WithStaged starts the model on the staged diff.
func WithStaged(staged bool) ModelOption {
	return func(m *Model) { m.staged = staged }
}

// WithRenderer sets the lipgloss renderer used for styles.
func WithRenderer(r *lipgloss.Renderer) ModelOption {
	return func(m *Model) { m.renderer = r }
}

// WithTheme sets the color theme.
func WithTheme(t Theme) ModelOption {
	return func(m *Model) { m.theme = t }
}

// WithTokenizer enables syntax highlighting of line content.
func WithTokenizer(t gitsage.Tokenizer) ModelOption {
	return func(m *Model) { m.tokenizer = t }
}

// WithLanguageDetector sets how file paths map to tokenizer languages.
func WithLanguageDetector(d gitsage.LanguageDetector) ModelOption {
	return func(m *Model) { m.detector = d }
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(fn func(string) error) ModelOption {
	return func(m *Model) { m.copyFn = fn }
}

// NewModel creates a model showing diff. Without a repository the model is a
// read-only viewer.
func NewModel(diff *gitsage.DiffOutput, opts ...ModelOption) Model {
	m := Model{
		diff:     diff,
		selected: make(map[lineRef]bool),
		keys:     defaultKeyMap(),
		help:     help.New(),
		renderer: lipgloss.DefaultRenderer(),
		theme:    DarkTheme(),
		copyFn:   clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.styles = newStyles(m.renderer, m.theme)
	m.rows = buildRows(m.diff)
	m.cursor = m.firstLineRow()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.repo == nil {
		return nil
	}
	return m.loadCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		height := max(msg.Height-footerHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.help.Width = msg.Width
		m.refresh()
		return m, nil

	case diffLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.diff = msg.diff
		m.ref = msg.ref
		m.rows = buildRows(m.diff)
		m.selected = make(map[lineRef]bool)
		m.cursor = min(m.cursor, len(m.rows)-1)
		if m.cursor < 0 || m.rows[m.cursor].kind != rowLine {
			m.cursor = m.nearestLineRow(m.cursor)
		}
		m.refresh()
		return m, nil

	case actionDoneMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
		}
		return m, m.loadCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Top):
		m.cursor = m.firstLineRow()
	case key.Matches(msg, m.keys.Bottom):
		m.cursor = m.nearestLineRow(len(m.rows) - 1)
	case key.Matches(msg, m.keys.NextHunk):
		m.jumpHunk(1)
	case key.Matches(msg, m.keys.PrevHunk):
		m.jumpHunk(-1)
	case key.Matches(msg, m.keys.Select):
		m.toggleSelection()
	case key.Matches(msg, m.keys.Copy):
		m.copyPatch()
	case key.Matches(msg, m.keys.Toggle):
		if m.repo == nil {
			return m, nil
		}
		m.staged = !m.staged
		m.status = ""
		return m, m.loadCmd()
	case key.Matches(msg, m.keys.Reload):
		if m.repo == nil {
			return m, nil
		}
		return m, m.loadCmd()
	case key.Matches(msg, m.keys.Stage):
		cmd := m.actionCmd(actionStage)
		return m, cmd
	case key.Matches(msg, m.keys.Unstage):
		cmd := m.actionCmd(actionUnstage)
		return m, cmd
	case key.Matches(msg, m.keys.Discard):
		cmd := m.actionCmd(actionDiscard)
		return m, cmd
	default:
		return m, nil
	}
	m.refresh()
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return m.viewport.View() + "\n" + m.statusLine() + "\n" + m.help.View(m.keys)
}

func (m Model) statusLine() string {
	label := "[unstaged]"
	if m.staged {
		label = "[staged]"
	}
	if m.ref != "" {
		label += " " + m.ref
	}
	if m.err != nil {
		return m.styles.err.Render(fmt.Sprintf("%s error: %v", label, m.err))
	}
	line := label
	if n := len(m.selected); n > 0 {
		line += fmt.Sprintf(" %d selected", n)
	}
	if m.status != "" {
		line += " " + m.status
	}
	return m.styles.status.Render(line)
}

func (m Model) loadCmd() tea.Cmd {
	repo, staged := m.repo, m.staged
	return func() tea.Msg {
		ctx := context.Background()
		var (
			diff *gitsage.DiffOutput
			err  error
		)
		if staged {
			diff, err = repo.StagedDiff(ctx)
		} else {
			diff, err = repo.UnstagedDiff(ctx)
		}
		if err != nil {
			return diffLoadedMsg{err: err}
		}
		ref, err := repo.CurrentRef(ctx)
		return diffLoadedMsg{diff: diff, ref: ref, err: err}
	}
}

type stagingAction int

const (
	actionStage stagingAction = iota
	actionUnstage
	actionDiscard
)

// actionCmd runs act against the hunk under the cursor, restricted to the
// selected lines of that hunk when any exist. Staging and discarding work on
// the unstaged view; unstaging works on the staged view.
func (m *Model) actionCmd(act stagingAction) tea.Cmd {
	if m.repo == nil {
		return nil
	}
	ref, ok := m.currentLine()
	if !ok {
		return nil
	}
	if (act == actionUnstage) != m.staged {
		m.err = errors.New(act.String() + " is not available in this view")
		m.refresh()
		return nil
	}
	m.err = nil

	path := m.diff.Files[ref.file].Path()
	hunk := ref.hunk
	lines := m.selectedLines(ref.file, ref.hunk)
	repo := m.repo
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		switch act {
		case actionStage:
			if len(lines) == 0 {
				err = repo.StageHunk(ctx, path, hunk)
			} else {
				err = repo.StageLines(ctx, path, hunk, lines)
			}
		case actionUnstage:
			if len(lines) == 0 {
				err = repo.UnstageHunk(ctx, path, hunk)
			} else {
				err = repo.UnstageLines(ctx, path, hunk, lines)
			}
		case actionDiscard:
			if len(lines) == 0 {
				err = repo.DiscardHunk(ctx, path, hunk)
			} else {
				err = repo.DiscardLines(ctx, path, hunk, lines)
			}
		}
		what := "hunk"
		if len(lines) > 0 {
			what = fmt.Sprintf("%d lines", len(lines))
		}
		return actionDoneMsg{status: fmt.Sprintf("%s %s of %s", act.past(), what, path), err: err}
	}
}

func (a stagingAction) past() string {
	if a == actionDiscard {
		return "discarded"
	}
	return a.String() + "d"
}

func (a stagingAction) String() string {
	switch a {
	case actionStage:
		return "stage"
	case actionUnstage:
		return "unstage"
	default:
		return "discard"
	}
}

// copyPatch writes the forward patch for the hunk under the cursor, or for
// its selected lines, to the clipboard.
func (m *Model) copyPatch() {
	ref, ok := m.currentLine()
	if !ok {
		return
	}
	file := m.diff.Files[ref.file]
	hunk := file.Hunks[ref.hunk]
	if hunk.IsLossy() {
		m.err = fmt.Errorf("copy patch: %w", gitsage.ErrLossyContent)
		return
	}
	var patch string
	if lines := m.selectedLines(ref.file, ref.hunk); len(lines) > 0 {
		patch = gitsage.GenerateLinePatch(file.Path(), hunk, lines, false)
	} else {
		patch = gitsage.GenerateHunkPatch(file.Path(), hunk, false)
	}
	if err := m.copyFn(patch); err != nil {
		m.err = fmt.Errorf("copy patch: %w", err)
		return
	}
	m.err = nil
	m.status = "copied patch for " + file.Path()
}

func (m *Model) toggleSelection() {
	ref, ok := m.currentLine()
	if !ok {
		return
	}
	origin := m.diff.Files[ref.file].Hunks[ref.hunk].Lines[ref.line].Origin
	if origin != gitsage.Addition && origin != gitsage.Deletion {
		return
	}
	if m.selected[ref] {
		delete(m.selected, ref)
	} else {
		m.selected[ref] = true
	}
	m.moveCursor(1)
}

func (m Model) selectedLines(file, hunk int) []int {
	var lines []int
	for ref := range m.selected {
		if ref.file == file && ref.hunk == hunk {
			lines = append(lines, ref.line)
		}
	}
	sort.Ints(lines)
	return lines
}

func (m Model) currentLine() (lineRef, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) || m.rows[m.cursor].kind != rowLine {
		return lineRef{}, false
	}
	r := m.rows[m.cursor]
	return lineRef{file: r.file, hunk: r.hunk, line: r.line}, true
}

func (m *Model) moveCursor(delta int) {
	for i := m.cursor + delta; i >= 0 && i < len(m.rows); i += delta {
		if m.rows[i].kind == rowLine {
			m.cursor = i
			return
		}
	}
}

func (m *Model) jumpHunk(delta int) {
	if m.cursor < 0 {
		return
	}
	cur := m.rows[m.cursor]
	for i := m.cursor + delta; i >= 0 && i < len(m.rows); i += delta {
		r := m.rows[i]
		if r.kind != rowHunk || (r.file == cur.file && r.hunk == cur.hunk) {
			continue
		}
		if i+1 < len(m.rows) && m.rows[i+1].kind == rowLine {
			m.cursor = i + 1
		}
		return
	}
}

func (m Model) firstLineRow() int {
	return m.nearestLineRow(0)
}

// nearestLineRow returns the first line row at or after i, falling back to
// the last line row before i, or -1 when there are none.
func (m Model) nearestLineRow(i int) int {
	for j := max(i, 0); j < len(m.rows); j++ {
		if m.rows[j].kind == rowLine {
			return j
		}
	}
	for j := min(i, len(m.rows)-1); j >= 0; j-- {
		if m.rows[j].kind == rowLine {
			return j
		}
	}
	return -1
}

// refresh re-renders the content and keeps the cursor row in view.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.render())
	if m.cursor < 0 {
		return
	}
	if m.cursor < m.viewport.YOffset {
		m.viewport.SetYOffset(m.cursor)
	} else if m.cursor >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(m.cursor - m.viewport.Height + 1)
	}
}

func buildRows(diff *gitsage.DiffOutput) []row {
	if diff == nil {
		return nil
	}
	var rows []row
	for fi, f := range diff.Files {
		rows = append(rows, row{kind: rowFile, file: fi})
		for hi, h := range f.Hunks {
			rows = append(rows, row{kind: rowHunk, file: fi, hunk: hi})
			for li := range h.Lines {
				rows = append(rows, row{kind: rowLine, file: fi, hunk: hi, line: li})
			}
		}
	}
	return rows
}

func (m Model) render() string {
	if m.diff.IsEmpty() {
		if m.staged {
			return "No staged changes."
		}
		return "No changes."
	}
	lines := make([]string, len(m.rows))
	for i, r := range m.rows {
		f := m.diff.Files[r.file]
		switch r.kind {
		case rowFile:
			lines[i] = m.renderFileHeader(f)
		case rowHunk:
			lines[i] = m.renderHunkHeader(f.Hunks[r.hunk])
		case rowLine:
			ref := lineRef{file: r.file, hunk: r.hunk, line: r.line}
			lines[i] = m.renderLine(f, f.Hunks[r.hunk].Lines[r.line], i == m.cursor, m.selected[ref])
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFileHeader(f gitsage.DiffFile) string {
	name := f.Path()
	switch {
	case f.IsRenamed():
		name = f.OldPath + " → " + f.NewPath
	case f.IsAdded():
		name += " (new)"
	case f.IsDeleted():
		name += " (deleted)"
	}
	if f.IsBinary {
		name += " (binary)"
	}
	return m.styles.fileHeader.Render("── " + name + " ──")
}

func (m Model) renderHunkHeader(h gitsage.DiffHunk) string {
	header := strings.TrimRight(h.Header, "\r\n")
	if header == "" {
		header = fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
	}
	return m.styles.hunkHeader.Render(header)
}

func (m Model) renderLine(f gitsage.DiffFile, l gitsage.DiffLine, cursor, selected bool) string {
	marker := "  "
	switch {
	case cursor && selected:
		marker = m.styles.cursor.Render(">") + m.styles.selected.Render("●")
	case cursor:
		marker = m.styles.cursor.Render(">") + " "
	case selected:
		marker = " " + m.styles.selected.Render("●")
	}

	gutter := m.styles.lineNumber.Render(fmt.Sprintf("%4s %4s ", lineno(l.OldLineno), lineno(l.NewLineno)))

	var prefix string
	var style lipgloss.Style
	switch l.Origin {
	case gitsage.Addition:
		prefix, style = "+", m.styles.added
	case gitsage.Deletion:
		prefix, style = "-", m.styles.deleted
	default:
		prefix, style = " ", m.styles.context
	}

	content := ExpandTabs(strings.TrimRight(l.Content, "\r\n"), 0)
	if m.width > 0 {
		content = Truncate(content, max(m.width-lineOverhead, 1))
	}
	return marker + gutter + style.Render(prefix) + m.renderContent(f, content, style)
}

func (m Model) renderContent(f gitsage.DiffFile, content string, fallback lipgloss.Style) string {
	if m.tokenizer == nil || m.detector == nil || content == "" {
		return fallback.Render(content)
	}
	lang := m.detector.DetectFromPath(f.Path())
	if lang == "" {
		return fallback.Render(content)
	}
	tokens := m.tokenizer.Tokenize(lang, content)
	if tokens == nil {
		return fallback.Render(content)
	}
	var b strings.Builder
	for _, tok := range tokens {
		style := fallback
		if tok.Style.Foreground != "" {
			style = m.renderer.NewStyle().Foreground(lipgloss.Color(tok.Style.Foreground))
		}
		if tok.Style.Bold {
			style = style.Bold(true)
		}
		b.WriteString(style.Render(tok.Text))
	}
	return b.String()
}

func lineno(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprint(n)
}

// Run starts the model as a full-screen program and blocks until it exits.
func Run(ctx context.Context, m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
