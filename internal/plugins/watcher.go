package plugins

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"conduit/internal/logging"
)

// Watcher reloads plugins on filesystem changes under the discovery
// directories.
type Watcher struct {
	loader  *Loader
	watcher *fsnotify.Watcher
	log     logging.Logger
}

// NewWatcher starts watching the directories that exist. Missing ones are
// skipped silently; they can be created later and picked up on restart.
func NewWatcher(loader *Loader, dirs []string, log logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{loader: loader, watcher: fw, log: logging.OrNop(log)}
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := fw.Add(dir); err != nil {
			w.log.Warn("cannot watch %s: %v", dir, err)
			continue
		}
		w.log.Debug("watching plugin dir %s", dir)
	}
	return w, nil
}

// Run processes events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("plugin watcher: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	name := event.Name
	base := filepath.Base(name)
	if !strings.HasSuffix(base, ".go") || strings.HasPrefix(base, "_") {
		return
	}
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if _, err := w.loader.LoadFile(name); err != nil {
			w.log.Warn("plugin %s rejected on change: %v", name, err)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.loader.Unload(name)
	}
}
