package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// Watcher monitors script files and calls onChange when one is written
type Watcher struct {
	watcher  *fsnotify.Watcher
	scripts  map[string]bool // absolute paths
	onChange func(path string)
	stdout   io.Writer
	stderr   io.Writer

	// Track last change time per file to debounce editor save bursts
	mu         sync.Mutex
	lastChange map[string]time.Time
	changeSeq  uint64
}

// debounce is how long rapid changes to one file are folded together
const debounce = 100 * time.Millisecond

// NewWatcher creates a watcher for the given script files
func NewWatcher(paths []string, onChange func(path string), stdout, stderr io.Writer) (*Watcher, error) {
	scripts := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		scripts[abs] = true
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:    fsWatcher,
		scripts:    scripts,
		onChange:   onChange,
		stdout:     stdout,
		stderr:     stderr,
		lastChange: make(map[string]time.Time),
	}, nil
}

// Start watches the directories holding the scripts. Editors often replace
// a file rather than write it, so the directory is watched, not the file.
func (w *Watcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for p := range w.scripts {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	for p := range w.scripts {
		w.logInfo("watching %s", p)
	}

	go w.eventLoop(ctx)
	return nil
}

// eventLoop processes file system events
func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil || !w.scripts[path] {
				continue
			}

			w.mu.Lock()
			if time.Since(w.lastChange[path]) < debounce {
				w.mu.Unlock()
				continue
			}
			w.lastChange[path] = time.Now()
			w.changeSeq++
			w.mu.Unlock()

			w.onChange(path)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logError("watcher error: %v", err)
		}
	}
}

// Changes returns the number of changes handled so far
func (w *Watcher) Changes() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changeSeq
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) logInfo(format string, args ...any) {
	fmt.Fprintf(w.stdout, "[WATCH] "+format+"\n", args...)
}

func (w *Watcher) logError(format string, args ...any) {
	fmt.Fprintf(w.stderr, "[WATCH] "+format+"\n", args...)
}

func newWatchCommand(a *app) *cobra.Command {
	var run bool
	cmd := &cobra.Command{
		Use:   "watch SCRIPT...",
		Short: "Recompile scripts whenever they change",
		Long: `Check each script when it is saved. With --run the macros of a script
that compiles are run over the store as well.`,
		Args: cobra.MinimumNArgs(1),
	}
	cmd.Flags().BoolVar(&run, "run", false, "run the macros after each successful compile")

	cmd.RunE = a.action(func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w, err := NewWatcher(args, func(path string) { a.recheck(ctx, path, run) }, a.stdout, a.stderr)
		if err != nil {
			return err
		}
		defer w.Close()

		if err := w.Start(ctx); err != nil {
			return err
		}
		for _, path := range args {
			a.recheck(ctx, path, false)
		}
		<-ctx.Done()
		return nil
	})
	return cmd
}

// recheck compiles path and, when run is set, runs its macros.
func (a *app) recheck(ctx context.Context, path string, run bool) {
	script, err := a.compileFile(path)
	if err != nil {
		fmt.Fprintf(a.stderr, "[WATCH] %v\n", err)
		return
	}
	fmt.Fprintf(a.stdout, "[WATCH] %s: ok (%s)\n", filepath.Base(path), plural(len(script.Macros), "macro"))
	if !run {
		return
	}

	src, err := a.source()
	if err != nil {
		fmt.Fprintf(a.stderr, "[WATCH] %v\n", err)
		return
	}
	for _, m := range script.Macros {
		if err := checkAsked(m, nil); err != nil {
			fmt.Fprintf(a.stderr, "[WATCH] %v\n", err)
			continue
		}
		report, err := a.engine().Run(ctx, m, src)
		if err != nil {
			fmt.Fprintf(a.stderr, "[WATCH] %s: %v\n", m.Name, err)
			continue
		}
		fmt.Fprintf(a.stdout, "[WATCH] %s\n", report.String())
	}
}
