package gallery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher flags the gallery as stale when anything under the root changes.
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher
	stale   atomic.Bool
	log     logrus.FieldLogger
}

// NewWatcher watches root and every identity directory below it. The root
// must exist.
func NewWatcher(root string, log logrus.FieldLogger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{root: root, watcher: fw, log: log}
	if err := w.addTree(); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree() error {
	return filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// Run processes events until ctx is done.
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
			w.log.WithError(err).Warn("gallery watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	// new identity directories need their own watch
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watcher.Add(event.Name)
		}
	}
	if !w.stale.Swap(true) {
		w.log.WithField("path", event.Name).Debug("gallery changed")
	}
}

// Stale reports whether the gallery changed since the last MarkFresh.
func (w *Watcher) Stale() bool {
	return w.stale.Load()
}

// MarkFresh clears the stale flag, call it right before reloading.
func (w *Watcher) MarkFresh() {
	w.stale.Store(false)
}
