// SPDX-License-Identifier: Apache-2.0

package askpass

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// socketWatcher reports when the socket file is deleted or renamed by
// someone else, e.g. a tmp cleaner sweeping /tmp.
type socketWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func watchSocket(addr string, logger *slog.Logger, onRemoved func()) (*socketWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(addr)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %q: %w", filepath.Dir(addr), err)
	}

	w := &socketWatcher{watcher: watcher, done: make(chan struct{})}
	go w.run(filepath.Clean(addr), logger, onRemoved)
	return w, nil
}

func (w *socketWatcher) run(addr string, logger *slog.Logger, onRemoved func()) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != addr {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				onRemoved()
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("askpass socket watcher", "error", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *socketWatcher) Close() {
	w.watcher.Close()
	<-w.done
}
