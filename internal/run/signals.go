package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// stopFileName is the sentinel file another process drops to cancel a run.
const stopFileName = "stop"

// signalsDir returns the signal directory under a base directory.
func signalsDir(baseDir string) string {
	return filepath.Join(baseDir, ".genesis", "signals")
}

// StopWatcher cancels an in-flight run when a stop file appears under
// <base>/.genesis/signals. It watches with fsnotify and falls back to
// polling in case events are dropped.
type StopWatcher struct {
	dir     string
	watcher *fsnotify.Watcher
}

// NewStopWatcher creates a watcher rooted at baseDir, creating the signal
// directory if needed. A stale stop file from an earlier run is removed so
// it cannot cancel this one.
func NewStopWatcher(baseDir string) (*StopWatcher, error) {
	dir := signalsDir(baseDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signals directory: %w", err)
	}
	_ = os.Remove(filepath.Join(dir, stopFileName))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create signal watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch signals directory: %w", err)
	}

	return &StopWatcher{dir: dir, watcher: watcher}, nil
}

// Watch derives a context that is canceled when the stop file appears.
// The returned cancel func must be called to release the watch goroutine.
func (w *StopWatcher) Watch(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-cctx.Done():
				return
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) == stopFileName && ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					cancel()
					return
				}
			case _, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
			case <-ticker.C:
				if w.stopRequested() {
					cancel()
					return
				}
			}
		}
	}()

	return cctx, cancel
}

// stopRequested reports whether the stop file currently exists.
func (w *StopWatcher) stopRequested() bool {
	_, err := os.Stat(filepath.Join(w.dir, stopFileName))
	return err == nil
}

// Close releases the underlying filesystem watcher.
func (w *StopWatcher) Close() error {
	return w.watcher.Close()
}

// RequestStop drops the stop file that cancels a run watching baseDir.
func RequestStop(baseDir string) error {
	dir := signalsDir(baseDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create signals directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stopFileName), []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0644); err != nil {
		return fmt.Errorf("write stop signal: %w", err)
	}
	return nil
}

// ClearStop removes a pending stop file, if any.
func ClearStop(baseDir string) error {
	err := os.Remove(filepath.Join(signalsDir(baseDir), stopFileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear stop signal: %w", err)
	}
	return nil
}
