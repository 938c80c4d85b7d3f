package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/park9140/kilroy-run-pane/internal/logger"
)

// dirWatcher watches one run directory tree and fires onChange after a quiet
// period. High-churn append-only files are excluded so a write storm on the
// progress log does not re-trigger reconstruction per appended line.
type dirWatcher struct {
	fsw      *fsnotify.Watcher
	dir      string
	debounce time.Duration
	onChange func()
	log      logger.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func newDirWatcher(dir string, debounce time.Duration, onChange func(), log logger.Logger) (*dirWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &dirWatcher{
		fsw:      fsw,
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		log:      log,
		done:     make(chan struct{}),
	}
	if err := w.addRecursive(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

// addRecursive attaches watches to root and every subdirectory. Directories
// that vanish mid-walk are skipped.
func (w *dirWatcher) addRecursive(root string) error {
	added := false
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Debug("watch add failed", logger.F("path", path), logger.F("error", err))
			return nil
		}
		added = true
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("failed to walk %s: %w", root, walkErr)
	}
	if !added {
		return fmt.Errorf("no watchable directories under %s", root)
	}
	return nil
}

func (w *dirWatcher) run() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	armed := false

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// New subdirectories (restart roots, node dirs) need their own
			// watch before changes inside them are visible.
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}
			if skipWatchFile(event.Name) {
				continue
			}
			timer.Reset(w.debounce)
			armed = true

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", logger.F("dir", w.dir), logger.F("error", err))

		case <-timer.C:
			if armed {
				armed = false
				w.onChange()
			}
		}
	}
}

func (w *dirWatcher) close() {
	w.closeOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
	})
}

// skipWatchFile filters out append-only and scratch files whose writes must
// not re-trigger a state read. The poll fallback covers anything only these
// files would have signaled.
func skipWatchFile(path string) bool {
	base := filepath.Base(path)
	if strings.Contains(base, ".tmp.") {
		return true
	}
	for _, suffix := range []string{".ndjson", ".gz", ".tgz", ".zst", ".out"} {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}
