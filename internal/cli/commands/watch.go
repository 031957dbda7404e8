package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapfm/internal/aggregate"
)

const watchDebounce = 100 * time.Millisecond

// WatchOptions holds options for the watch command.
type WatchOptions struct {
	Statement string
	Annual    bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the model whenever its files change",
		Long: `Watch the model, scenario, schema and functions directory and print
the statements after every change. Errors are shown and watching continues.`,
		Example: `  # Watch and show every statement
  leapfm watch

  # Watch one statement by year
  leapfm watch --statement pnl --annual`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Statement, "statement", "", "Show only this statement")
	cmd.Flags().BoolVar(&opts.Annual, "annual", false, "Fold months into years")

	return cmd
}

// watchSet decides which file events trigger a re-run.
type watchSet struct {
	files   map[string]bool
	funcDir string
}

func newWatchSet(files []string, funcDir string) *watchSet {
	ws := &watchSet{files: make(map[string]bool), funcDir: funcDir}
	for _, f := range files {
		if f != "" {
			ws.files[filepath.Clean(f)] = true
		}
	}
	if funcDir != "" {
		ws.funcDir = filepath.Clean(funcDir)
	}
	return ws
}

// dirs returns the directories to register with the watcher.
func (ws *watchSet) dirs() []string {
	seen := make(map[string]bool)
	var out []string
	for f := range ws.files {
		d := filepath.Dir(f)
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	if ws.funcDir != "" && !seen[ws.funcDir] {
		if info, err := os.Stat(ws.funcDir); err == nil && info.IsDir() {
			out = append(out, ws.funcDir)
		}
	}
	return out
}

// relevant reports whether an event on path should trigger a re-run.
func (ws *watchSet) relevant(path string) bool {
	path = filepath.Clean(path)
	if ws.files[path] {
		return true
	}
	return ws.funcDir != "" && filepath.Dir(path) == ws.funcDir && strings.HasSuffix(path, ".star")
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	cfg := cmdCtx.Cfg

	if err := cfg.ValidateFiles(); err != nil {
		return err
	}

	ws := newWatchSet([]string{cfg.Model, cfg.Scenario, cfg.Schema}, cfg.FunctionsDir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range ws.dirs() {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	trigger := make(chan string, 1)
	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		watchLoop(ctx, watcher, ws, trigger, cmdCtx)
		return nil
	})

	g.Go(func() error {
		evaluateAndShow := func(reason string) {
			if reason != "" {
				r.Println("")
				r.Header(2, fmt.Sprintf("%s changed (%s)", reason, time.Now().Format(time.TimeOnly)))
			}
			if err := watchRun(ctx, cmdCtx, opts); err != nil {
				r.Error(err.Error())
			}
		}

		evaluateAndShow("")
		r.Println("")
		r.Println(r.Styles().Muted.Render("Watching for changes. Press Ctrl+C to stop."))

		for {
			select {
			case <-ctx.Done():
				return nil
			case name := <-trigger:
				evaluateAndShow(name)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchLoop forwards relevant, debounced file events to trigger.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, ws *watchSet, trigger chan<- string, cmdCtx *CommandContext) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Editors often save by renaming a temp file over the original.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !ws.relevant(event.Name) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := filepath.Base(event.Name)
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- name:
				default: // a re-run is already pending
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			cmdCtx.Logger.Warn("watcher error", "error", err)
		}
	}
}

// watchRun reloads the project and prints its statements.
func watchRun(ctx context.Context, cmdCtx *CommandContext, opts *WatchOptions) error {
	r := cmdCtx.Renderer

	project, err := cmdCtx.LoadProject("")
	if err != nil {
		return err
	}
	ev, err := cmdCtx.Evaluate(ctx, project, nil)
	if err != nil {
		return err
	}

	stmts := ev.Statements
	if opts.Annual {
		stmts = aggregate.Annualize(stmts, ev.Result.Context.Years)
	}
	tables, err := statementTables(r, stmts, opts.Statement)
	if err != nil {
		return err
	}
	return renderTables(r, tables)
}
