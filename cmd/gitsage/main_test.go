package main_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gitsage/gitsage"
	"github.com/gitsage/gitsage/bubbletea"
	main "github.com/gitsage/gitsage/cmd/gitsage"
	"github.com/gitsage/gitsage/gitdiff"
	"github.com/gitsage/gitsage/jsonl"
	"github.com/gitsage/gitsage/mock"
	"github.com/gitsage/gitsage/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var helloPatch = strings.Join([]string{
	"diff --git a/hello.go b/hello.go",
	"index 1111111..2222222 100644",
	"--- a/hello.go",
	"+++ b/hello.go",
	"@@ -1,3 +1,4 @@",
	" package main",
	" ",
	"+func hello() {}",
	" func main() {}",
	"",
}, "\n")

func helloRaw() *gitsage.RawDiff {
	return &gitsage.RawDiff{
		Patch: []byte(helloPatch),
		Stats: gitsage.DiffStats{FilesChanged: 1, Insertions: 1},
	}
}

type applied struct {
	patch string
	opts  gitsage.ApplyOptions
}

// harness runs the CLI against a session backed by mocks.
type harness struct {
	mu       sync.Mutex
	requests []gitsage.DiffRequest
	applies  []applied
	raw      *gitsage.RawDiff
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	models   []bubbletea.Model
	app      *main.App
}

func newHarness(t *testing.T, raw *gitsage.RawDiff) *harness {
	t.Helper()
	h := &harness{raw: raw}
	engine := &mock.Engine{
		DiffFn: func(_ context.Context, req gitsage.DiffRequest) (*gitsage.RawDiff, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.requests = append(h.requests, req)
			return h.raw, nil
		},
	}
	applier := &mock.Applier{
		ApplyFn: func(_ context.Context, patch string, opts gitsage.ApplyOptions) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.applies = append(h.applies, applied{patch: patch, opts: opts})
			return nil
		},
	}
	h.app = &main.App{
		Stdout: &h.stdout,
		Stderr: &h.stderr,
		Open: func(path string, _ session.Config) (*session.Session, error) {
			return session.New(path, engine, gitdiff.NewParser(), applier), nil
		},
		RunUI: func(_ context.Context, m bubbletea.Model) error {
			h.models = append(h.models, m)
			return nil
		},
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	return h.app.Run(context.Background(), append([]string{"--config", cfg}, args...))
}

func TestApp_Run_DiffPrintsUnstagedChanges(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	require.NoError(t, h.run(t, "diff"))

	out := h.stdout.String()
	assert.Contains(t, out, "diff hello.go\n--- a/hello.go\n+++ b/hello.go\n")
	assert.Contains(t, out, "@@ -1,3 +1,4 @@")
	assert.Contains(t, out, "+func hello() {}\n")
	assert.Contains(t, out, " 1 files changed, 1 insertions(+), 0 deletions(-)")
	require.Len(t, h.requests, 1)
	assert.Equal(t, gitsage.DiffRequest{Mode: gitsage.ModeUnstaged}, h.requests[0])
}

func TestApp_Run_DiffStagedPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	require.NoError(t, h.run(t, "diff", "--staged", "hello.go"))

	require.Len(t, h.requests, 1)
	assert.Equal(t, gitsage.DiffRequest{Mode: gitsage.ModeStaged, Path: "hello.go"}, h.requests[0])
}

func TestApp_Run_DiffJSON(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	require.NoError(t, h.run(t, "diff", "--json"))

	diff, err := jsonl.NewLoader().LoadDiff(&h.stdout)
	require.NoError(t, err)
	require.Len(t, diff.Files, 1)
	assert.Equal(t, "hello.go", diff.Files[0].Path())
	require.Len(t, diff.Files[0].Hunks, 1)
	assert.Len(t, diff.Files[0].Hunks[0].Lines, 4)
	assert.Equal(t, gitsage.DiffStats{FilesChanged: 1, Insertions: 1}, diff.Stats)
}

func TestApp_Run_DiffExitCode(t *testing.T) {
	t.Parallel()

	t.Run("empty diff", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, &gitsage.RawDiff{})
		err := h.run(t, "diff", "--exit-code")

		assert.ErrorIs(t, err, main.ErrNoChanges)
		assert.Empty(t, h.stdout.String())
	})

	t.Run("non-empty diff", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, helloRaw())
		assert.NoError(t, h.run(t, "diff", "--exit-code"))
	})
}

func TestApp_Run_ShowRequestsCommit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	require.NoError(t, h.run(t, "show", "abc123"))

	require.Len(t, h.requests, 1)
	assert.Equal(t, gitsage.DiffRequest{Mode: gitsage.ModeCommit, Commit: "abc123"}, h.requests[0])
	assert.Contains(t, h.stdout.String(), "+func hello() {}")
}

func TestApp_Run_Gutter(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	require.NoError(t, h.run(t, "gutter", "hello.go"))

	assert.Equal(t, "3-3 Added\n", h.stdout.String())
	require.Len(t, h.requests, 1)
	assert.Equal(t, gitsage.ModeWorkdir, h.requests[0].Mode)
}

func TestApp_Run_PatchPrintsHunk(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	require.NoError(t, h.run(t, "patch", "hello.go", "0"))

	expected := "--- a/hello.go\n" +
		"+++ b/hello.go\n" +
		"@@ -1,3 +1,4 @@\n" +
		" package main\n" +
		" \n" +
		"+func hello() {}\n" +
		" func main() {}\n"
	assert.Equal(t, expected, h.stdout.String())
	assert.Empty(t, h.applies, "patch must not apply anything")
}

func TestApp_Run_PatchReverseLines(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	require.NoError(t, h.run(t, "patch", "hello.go", "0", "--staged", "--reverse", "--lines", "2"))

	expected := "--- a/hello.go\n" +
		"+++ b/hello.go\n" +
		"@@ -1,4 +1,3 @@\n" +
		" package main\n" +
		" \n" +
		"-func hello() {}\n" +
		" func main() {}\n"
	assert.Equal(t, expected, h.stdout.String())
	require.Len(t, h.requests, 1)
	assert.Equal(t, gitsage.ModeStaged, h.requests[0].Mode)
}

func TestApp_Run_ApplyCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		mode gitsage.DiffMode
		opts gitsage.ApplyOptions
		line string
	}{
		{
			name: "stage hunk",
			args: []string{"stage", "hello.go", "0"},
			mode: gitsage.ModeUnstaged,
			opts: gitsage.ApplyOptions{Cached: true},
			line: "+func hello() {}\n",
		},
		{
			name: "stage lines",
			args: []string{"stage", "hello.go", "0", "--lines", "2"},
			mode: gitsage.ModeUnstaged,
			opts: gitsage.ApplyOptions{Cached: true},
			line: "+func hello() {}\n",
		},
		{
			name: "unstage hunk",
			args: []string{"unstage", "hello.go", "0"},
			mode: gitsage.ModeStaged,
			opts: gitsage.ApplyOptions{Cached: true},
			line: "-func hello() {}\n",
		},
		{
			name: "discard hunk",
			args: []string{"discard", "hello.go", "0"},
			mode: gitsage.ModeUnstaged,
			opts: gitsage.ApplyOptions{Reverse: true},
			line: "+func hello() {}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, helloRaw())
			require.NoError(t, h.run(t, tt.args...))

			require.Len(t, h.requests, 1)
			assert.Equal(t, tt.mode, h.requests[0].Mode)
			assert.Equal(t, "hello.go", h.requests[0].Path)
			require.Len(t, h.applies, 1)
			assert.Equal(t, tt.opts, h.applies[0].opts)
			assert.Contains(t, h.applies[0].patch, tt.line)
		})
	}
}

func TestApp_Run_ContextOnlySelectionSkipsApply(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	require.NoError(t, h.run(t, "stage", "hello.go", "0", "--lines", "0,1"))

	assert.Empty(t, h.applies)
}

func TestApp_Run_InvalidHunkIndex(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	err := h.run(t, "stage", "hello.go", "first")

	assert.ErrorIs(t, err, gitsage.ErrHunkIndexOutOfRange)
	assert.Contains(t, err.Error(), `invalid hunk index "first"`)
	assert.Empty(t, h.requests)
}

func TestApp_Run_HunkOutOfRange(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	err := h.run(t, "stage", "hello.go", "3")

	assert.ErrorIs(t, err, gitsage.ErrHunkIndexOutOfRange)
	assert.Empty(t, h.applies)
}

func TestApp_Run_InvalidLineSelection(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	err := h.run(t, "stage", "hello.go", "0", "--lines", "9")

	assert.ErrorIs(t, err, gitsage.ErrInvalidLineSelection)
	assert.Empty(t, h.applies)
}

func TestApp_Run_OpenError(t *testing.T) {
	t.Parallel()

	app := &main.App{
		Open: func(string, session.Config) (*session.Session, error) {
			return nil, gitsage.ErrNoRepository
		},
	}
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	err := app.Run(context.Background(), []string{"--config", cfg, "diff"})

	assert.ErrorIs(t, err, gitsage.ErrNoRepository)
}

func TestApp_Run_RejectsUnknownLogLevel(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	err := h.run(t, "--log-level", "loud", "diff")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Empty(t, h.requests)
}

func TestApp_Run_ReadsConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("git_binary: /opt/git\ncontext_lines: 5\n"), 0o644))

	var got session.Config
	app := &main.App{
		Open: func(_ string, cfg session.Config) (*session.Session, error) {
			got = cfg
			return nil, errors.New("stop")
		},
	}
	err := app.Run(context.Background(), []string{"--config", cfgPath, "--repo", dir, "diff"})

	require.EqualError(t, err, "stop")
	assert.Equal(t, "/opt/git", got.GitBinary)
	assert.Equal(t, 5, got.ContextLines)
	assert.NotNil(t, got.Logger)
}

func TestApp_Run_UIStartsInteractiveModel(t *testing.T) {
	t.Parallel()

	h := newHarness(t, helloRaw())
	var loaded bool
	h.app.RunUI = func(_ context.Context, m bubbletea.Model) error {
		// The session is only open while the UI runs.
		if cmd := m.Init(); cmd != nil {
			cmd()
			loaded = true
		}
		return nil
	}
	require.NoError(t, h.run(t, "ui", "--staged"))

	assert.True(t, loaded, "interactive model should load the diff on start")
	require.Len(t, h.requests, 1)
	assert.Equal(t, gitsage.ModeStaged, h.requests[0].Mode)
}

func TestApp_Run_ViewLoadsSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	snapshot := filepath.Join(dir, "diff.jsonl")
	f, err := os.Create(snapshot)
	require.NoError(t, err)
	diff := &gitsage.DiffOutput{Files: []gitsage.DiffFile{{OldPath: "lib.go", NewPath: "lib.go"}}}
	require.NoError(t, jsonl.NewWriter(f).WriteDiff(diff))
	require.NoError(t, f.Close())

	h := newHarness(t, helloRaw())
	require.NoError(t, h.run(t, "view", snapshot))

	require.Len(t, h.models, 1)
	assert.Nil(t, h.models[0].Init(), "snapshot model is read-only")
	next, _ := h.models[0].Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Contains(t, next.View(), "lib.go")
	assert.Empty(t, h.requests, "view must not touch the repository")
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{
		"-c", "user.name=Test", "-c", "user.email=test@example.com", "-c", "commit.gpgsign=false",
	}, args...)...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_CONFIG_NOSYSTEM=1", "GIT_CONFIG_GLOBAL="+os.DevNull)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return string(out)
}

func TestApp_Run_PathsRelativeToRepoFlag(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	gitCmd(t, root, "init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(sub, "f.txt"), []byte("a\n"), 0o644))
	gitCmd(t, root, "add", "sub/f.txt")
	gitCmd(t, root, "commit", "-q", "-m", "initial")
	require.NoError(t, os.WriteFile(filepath.Join(sub, "f.txt"), []byte("b\n"), 0o644))

	run := func(args ...string) (string, error) {
		var stdout bytes.Buffer
		app := &main.App{Stdout: &stdout}
		cfg := filepath.Join(t.TempDir(), "config.yaml")
		err := app.Run(context.Background(), append([]string{"--config", cfg, "--repo", sub}, args...))
		return stdout.String(), err
	}

	out, err := run("gutter", "f.txt")
	require.NoError(t, err)
	assert.Equal(t, "1-1 Modified\n", out)

	out, err = run("diff", "f.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "diff sub/f.txt\n")

	_, err = run("stage", "f.txt", "0")
	require.NoError(t, err)
	assert.Equal(t, "b\n", gitCmd(t, root, "show", ":sub/f.txt"))

	_, err = run("stage", "../../outside.txt", "0")
	assert.ErrorIs(t, err, gitsage.ErrNoDiffFound)
	assert.Contains(t, err.Error(), "outside the repository")
}
