// Package confwatch watches NetPulse's configuration file for edits and
// invokes a callback after a debounce window, adapted from the
// teacher's fsnotify-based file watcher for a single watched file and a
// single registered callback rather than a whole source tree.
package confwatch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/netpulse/internal/logging"
)

// debounceDelay absorbs the burst of write events most editors produce
// for a single save (truncate + write, or write-then-rename).
const debounceDelay = 500 * time.Millisecond

// Watch watches path's containing directory for create/write events
// naming path, and calls onChange after debounceDelay of quiet
// following the last matching event. It blocks until ctx is cancelled
// or the watcher fails to start. A blank path is a no-op.
func Watch(ctx context.Context, path string, log logging.Logger, onChange func()) error {
	if path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	clean := filepath.Clean(path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != clean {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, onChange)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn(ctx, err, "config watcher error")
		}
	}
}
