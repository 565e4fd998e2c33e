package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gitsage/gitsage"
	"github.com/gitsage/gitsage/bubbletea"
	"github.com/gitsage/gitsage/chroma"
	"github.com/gitsage/gitsage/config"
	"github.com/gitsage/gitsage/fs"
	"github.com/gitsage/gitsage/jsonl"
	"github.com/gitsage/gitsage/logging"
	"github.com/gitsage/gitsage/session"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ErrNoChanges is returned by diff and show with --exit-code when the diff
// is empty.
var ErrNoChanges = errors.New("no changes")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	app := &App{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
	err := app.Run(ctx, os.Args[1:])
	stop()
	switch {
	case errors.Is(err, ErrNoChanges):
		os.Exit(1)
	case err != nil:
		fmt.Fprintln(os.Stderr, "gitsage:", err)
		os.Exit(2)
	}
}

// App wires the command line to a repository session.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Open opens the session for the repository containing path.
	// Defaults to session.Open.
	Open func(path string, cfg session.Config) (*session.Session, error)
	// RunUI runs the interactive model. Defaults to bubbletea.Run.
	RunUI func(ctx context.Context, m bubbletea.Model) error

	repoPath   string
	configPath string
	logLevel   string
	logFormat  string

	cfg config.Config
}

// Run executes the command line args.
func (a *App) Run(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "gitsage",
		Short:         "Inspect and stage git changes hunk by hunk or line by line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd.Flags())
		},
	}
	if a.Stdout != nil {
		root.SetOut(a.Stdout)
	}
	if a.Stderr != nil {
		root.SetErr(a.Stderr)
	}
	if a.Stdin != nil {
		root.SetIn(a.Stdin)
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.repoPath, "repo", "C", ".", "path inside the repository")
	pf.StringVar(&a.configPath, "config", fs.DefaultConfigPath(), "config file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		a.diffCommand(),
		a.showCommand(),
		a.gutterCommand(),
		a.patchCommand(),
		a.applyCommand("stage", "Stage a hunk or selected lines of it", (*session.Session).StageHunk, (*session.Session).StageLines),
		a.applyCommand("unstage", "Unstage a hunk or selected lines of it", (*session.Session).UnstageHunk, (*session.Session).UnstageLines),
		a.applyCommand("discard", "Discard a work tree hunk or selected lines of it", (*session.Session).DiscardHunk, (*session.Session).DiscardLines),
		a.uiCommand(),
		a.viewCommand(),
	)
	return root
}

func (a *App) loadConfig(flags *pflag.FlagSet) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *App) session() (*session.Session, error) {
	open := a.Open
	if open == nil {
		open = session.Open
	}
	return open(a.repoPath, session.Config{
		GitBinary:    a.cfg.GitBinary,
		ContextLines: a.cfg.ContextLines,
		Logger:       logging.New(a.stderr(), a.cfg.LogLevel, a.cfg.LogFormat),
	})
}

func (a *App) stdout() io.Writer {
	if a.Stdout == nil {
		return io.Discard
	}
	return a.Stdout
}

func (a *App) stderr() io.Writer {
	if a.Stderr == nil {
		return io.Discard
	}
	return a.Stderr
}

// withSession opens the session, runs fn and closes it.
func (a *App) withSession(fn func(s *session.Session) error) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// repoRelative maps a path argument, taken relative to the --repo directory,
// to the slash-separated form git uses relative to the work tree root.
func (a *App) repoRelative(s *session.Session, arg string) (string, error) {
	p := arg
	if !filepath.IsAbs(p) {
		p = filepath.Join(a.repoPath, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	root, err := filepath.Abs(s.Root())
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(evalSymlinks(root), evalSymlinks(abs))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside the repository at %s", gitsage.ErrNoDiffFound, arg, root)
	}
	return filepath.ToSlash(rel), nil
}

// evalSymlinks resolves links in p, or in its parent when p no longer exists.
func evalSymlinks(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	if r, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		return filepath.Join(r, filepath.Base(p))
	}
	return p
}

type outputFlags struct {
	json     bool
	exitCode bool
}

func (o *outputFlags) register(flags *pflag.FlagSet) {
	flags.BoolVar(&o.json, "json", false, "write JSON Lines instead of a patch")
	flags.BoolVar(&o.exitCode, "exit-code", false, "exit with status 1 when there are no changes")
}

func (a *App) writeDiff(out *gitsage.DiffOutput, o outputFlags) error {
	var err error
	if o.json {
		err = jsonl.NewWriter(a.stdout()).WriteDiff(out)
	} else {
		err = writeText(a.stdout(), out)
	}
	if err != nil {
		return err
	}
	if o.exitCode && out.IsEmpty() {
		return ErrNoChanges
	}
	return nil
}

func (a *App) diffCommand() *cobra.Command {
	var (
		staged bool
		out    outputFlags
	)
	cmd := &cobra.Command{
		Use:   "diff [path]",
		Short: "Show unstaged or staged changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(s *session.Session) error {
				var (
					diff *gitsage.DiffOutput
					err  error
				)
				switch {
				case len(args) == 1:
					var path string
					if path, err = a.repoRelative(s, args[0]); err != nil {
						return err
					}
					diff, err = s.Diff(cmd.Context(), path, staged)
				case staged:
					diff, err = s.StagedDiff(cmd.Context())
				default:
					diff, err = s.UnstagedDiff(cmd.Context())
				}
				if err != nil {
					return err
				}
				return a.writeDiff(diff, out)
			})
		},
	}
	cmd.Flags().BoolVar(&staged, "staged", false, "compare HEAD with the index")
	out.register(cmd.Flags())
	return cmd
}

func (a *App) showCommand() *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "show <commit>",
		Short: "Show the changes a commit introduced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(s *session.Session) error {
				diff, err := s.CommitDiff(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.writeDiff(diff, out)
			})
		},
	}
	out.register(cmd.Flags())
	return cmd
}

func (a *App) gutterCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "gutter <path>",
		Short: "List changed line ranges of a file relative to HEAD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(s *session.Session) error {
				path, err := a.repoRelative(s, args[0])
				if err != nil {
					return err
				}
				changes, err := s.LineChanges(cmd.Context(), path)
				if err != nil {
					return err
				}
				if asJSON {
					return jsonl.NewWriter(a.stdout()).WriteLineChanges(changes)
				}
				for _, c := range changes {
					if _, err := fmt.Fprintf(a.stdout(), "%d-%d %s\n", c.StartLine, c.EndLine, c.ChangeType); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "write JSON Lines")
	return cmd
}

func addLinesFlag(flags *pflag.FlagSet, p *[]int) {
	flags.IntSliceVar(p, "lines", nil, "line indices within the hunk, e.g. 1,2,5")
}

func parseHunkIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid hunk index %q", gitsage.ErrHunkIndexOutOfRange, s)
	}
	return n, nil
}

func (a *App) patchCommand() *cobra.Command {
	var (
		staged  bool
		reverse bool
		lines   []int
	)
	cmd := &cobra.Command{
		Use:   "patch <path> <hunk>",
		Short: "Print the patch for a hunk or selected lines of it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hunk, err := parseHunkIndex(args[1])
			if err != nil {
				return err
			}
			return a.withSession(func(s *session.Session) error {
				path, err := a.repoRelative(s, args[0])
				if err != nil {
					return err
				}
				var patch string
				if cmd.Flags().Changed("lines") {
					patch, err = s.LinePatch(cmd.Context(), path, staged, hunk, lines, reverse)
				} else {
					patch, err = s.HunkPatch(cmd.Context(), path, staged, hunk, reverse)
				}
				if err != nil {
					return err
				}
				_, err = io.WriteString(a.stdout(), patch)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&staged, "staged", false, "take the hunk from the staged diff")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "synthesize the reverse patch")
	addLinesFlag(cmd.Flags(), &lines)
	return cmd
}

type (
	hunkFunc  func(s *session.Session, ctx context.Context, path string, hunk int) error
	linesFunc func(s *session.Session, ctx context.Context, path string, hunk int, lines []int) error
)

func (a *App) applyCommand(name, short string, onHunk hunkFunc, onLines linesFunc) *cobra.Command {
	var lines []int
	cmd := &cobra.Command{
		Use:   name + " <path> <hunk>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hunk, err := parseHunkIndex(args[1])
			if err != nil {
				return err
			}
			return a.withSession(func(s *session.Session) error {
				path, err := a.repoRelative(s, args[0])
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("lines") {
					return onLines(s, cmd.Context(), path, hunk, lines)
				}
				return onHunk(s, cmd.Context(), path, hunk)
			})
		},
	}
	addLinesFlag(cmd.Flags(), &lines)
	return cmd
}

func (a *App) modelOptions() []bubbletea.ModelOption {
	renderer := lipgloss.NewRenderer(a.stdout(), termenv.WithColorCache(true))
	return []bubbletea.ModelOption{
		bubbletea.WithRenderer(renderer),
		bubbletea.WithTheme(bubbletea.ThemeByName(a.cfg.Theme)),
		bubbletea.WithTokenizer(chroma.NewTokenizer(chroma.DefaultPalette())),
		bubbletea.WithLanguageDetector(chroma.NewLanguageDetector()),
	}
}

func (a *App) runUI(ctx context.Context, m bubbletea.Model) error {
	if a.RunUI != nil {
		return a.RunUI(ctx, m)
	}
	return bubbletea.Run(ctx, m)
}

func (a *App) uiCommand() *cobra.Command {
	var staged bool
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Stage, unstage and discard changes interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(func(s *session.Session) error {
				opts := append(a.modelOptions(), bubbletea.WithRepository(s), bubbletea.WithStaged(staged))
				return a.runUI(cmd.Context(), bubbletea.NewModel(nil, opts...))
			})
		},
	}
	cmd.Flags().BoolVar(&staged, "staged", false, "start on the staged diff")
	return cmd
}

func (a *App) viewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view [snapshot.jsonl]",
		Short: "Browse a JSON Lines diff snapshot read-only",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := jsonl.NewLoader()
			var (
				diff *gitsage.DiffOutput
				err  error
			)
			if len(args) == 1 {
				diff, err = loader.Load(args[0])
			} else {
				diff, err = loader.LoadDiff(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}
			return a.runUI(cmd.Context(), bubbletea.NewModel(diff, a.modelOptions()...))
		},
	}
}
