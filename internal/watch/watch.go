// Package watch re-syncs the target document to the language server when it
// changes on disk. Editors typically replace files rather than write them in
// place, so the watcher monitors the parent directory and filters events for
// the one file it cares about, with a short debounce to coalesce the
// write/rename bursts a single save produces.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SyncFunc receives the file's new content and the next document version.
type SyncFunc func(text string, version int32)

// Watcher watches a single file and invokes a sync callback on change.
type Watcher struct {
	path     string
	dir      string
	base     string
	debounce time.Duration
	version  int32
	sync     SyncFunc
	log      *zap.Logger
}

// New creates a watcher for path. The first sync after a change carries
// version 2 (version 1 was the didOpen). Logger may be nil.
func New(path string, sync SyncFunc, log *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		path:     abs,
		dir:      filepath.Dir(abs),
		base:     filepath.Base(abs),
		debounce: 100 * time.Millisecond,
		version:  1,
		sync:     sync,
		log:      log,
	}, nil
}

// Run watches until ctx is cancelled. Watch errors are logged, not fatal:
// losing live re-sync should never take the session down.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != w.base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.resync()
		}
	}
}

func (w *Watcher) resync() {
	text, err := os.ReadFile(w.path)
	if err != nil {
		w.log.Warn("read changed file", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.version++
	w.log.Debug("document changed on disk",
		zap.String("path", w.path),
		zap.Int32("version", w.version))
	w.sync(string(text), w.version)
}
