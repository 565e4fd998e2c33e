package bubbletea_test

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/gitsage/gitsage"
	"github.com/muesli/termenv"
)

// trueColorRenderer creates a lipgloss renderer that outputs true colors.
// This is useful for testing color output without affecting global state.
func trueColorRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.TrueColor)
	return r
}

// plainRenderer creates a renderer without color so output can be matched
// as plain text.
func plainRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return r
}

// mockTokenizer implements gitsage.Tokenizer for testing.
type mockTokenizer struct {
	TokenizeFn func(language, source string) []gitsage.Token
}

func (m *mockTokenizer) Tokenize(language, source string) []gitsage.Token {
	return m.TokenizeFn(language, source)
}

// mockLanguageDetector implements gitsage.LanguageDetector for testing.
type mockLanguageDetector struct {
	DetectFromPathFn func(path string) string
}

func (m *mockLanguageDetector) DetectFromPath(path string) string {
	return m.DetectFromPathFn(path)
}

type call struct {
	Op    string
	Path  string
	Hunk  int
	Lines []int
}

// fakeRepository records staging calls and serves fixed diffs.
type fakeRepository struct {
	mu       sync.Mutex
	staged   *gitsage.DiffOutput
	unstaged *gitsage.DiffOutput
	ref      string
	err      error
	calls    []call
}

func (f *fakeRepository) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeRepository) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeRepository) CurrentRef(ctx context.Context) (string, error) {
	return f.ref, nil
}

func (f *fakeRepository) StagedDiff(ctx context.Context) (*gitsage.DiffOutput, error) {
	return f.staged, nil
}

func (f *fakeRepository) UnstagedDiff(ctx context.Context) (*gitsage.DiffOutput, error) {
	return f.unstaged, nil
}

func (f *fakeRepository) StageHunk(ctx context.Context, path string, hunk int) error {
	return f.record(call{Op: "StageHunk", Path: path, Hunk: hunk})
}

func (f *fakeRepository) UnstageHunk(ctx context.Context, path string, hunk int) error {
	return f.record(call{Op: "UnstageHunk", Path: path, Hunk: hunk})
}

func (f *fakeRepository) DiscardHunk(ctx context.Context, path string, hunk int) error {
	return f.record(call{Op: "DiscardHunk", Path: path, Hunk: hunk})
}

func (f *fakeRepository) StageLines(ctx context.Context, path string, hunk int, lines []int) error {
	return f.record(call{Op: "StageLines", Path: path, Hunk: hunk, Lines: lines})
}

func (f *fakeRepository) UnstageLines(ctx context.Context, path string, hunk int, lines []int) error {
	return f.record(call{Op: "UnstageLines", Path: path, Hunk: hunk, Lines: lines})
}

func (f *fakeRepository) DiscardLines(ctx context.Context, path string, hunk int, lines []int) error {
	return f.record(call{Op: "DiscardLines", Path: path, Hunk: hunk, Lines: lines})
}

// sampleDiff is one modified file with a single mixed hunk.
func sampleDiff() *gitsage.DiffOutput {
	return &gitsage.DiffOutput{
		Files: []gitsage.DiffFile{
			{
				OldPath: "main.go",
				NewPath: "main.go",
				Hunks: []gitsage.DiffHunk{
					{
						OldStart: 10, OldLines: 3, NewStart: 10, NewLines: 3,
						Header: "@@ -10,3 +10,3 @@ func main()",
						Lines: []gitsage.DiffLine{
							{Origin: gitsage.Context, Content: "\tx := 1\n", OldLineno: 10, NewLineno: 10},
							{Origin: gitsage.Deletion, Content: "\ty := 2\n", OldLineno: 11},
							{Origin: gitsage.Addition, Content: "\ty := 3\n", NewLineno: 11},
							{Origin: gitsage.Context, Content: "\treturn\n", OldLineno: 12, NewLineno: 12},
						},
					},
					{
						OldStart: 40, OldLines: 1, NewStart: 40, NewLines: 2,
						Lines: []gitsage.DiffLine{
							{Origin: gitsage.Context, Content: "}\n", OldLineno: 40, NewLineno: 40},
							{Origin: gitsage.Addition, Content: "// end\n", NewLineno: 41},
						},
					},
				},
			},
		},
	}
}
