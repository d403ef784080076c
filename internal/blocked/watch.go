// SPDX-License-Identifier: MPL-2.0

package blocked

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the quiet period after the last filesystem event before
// a rescan fires. Browsers write downloads as a temp file and rename it at
// the end, so a short window coalesces that burst into one rescan.
const defaultDebounce = 400 * time.Millisecond

// dirWatcher monitors a set of directories and fires a debounced callback
// whenever anything inside them changes. Filtering of individual files is
// the Scanner's job; the watcher only decides when to look again.
type dirWatcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	onChange func()
	onError  func(error)
	logger   *log.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// newDirWatcher creates a watcher that invokes onChange after events settle
// and onError for non-fatal watch errors. A nil logger disables logging.
func newDirWatcher(debounce time.Duration, onChange func(), onError func(error), logger *log.Logger) (*dirWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = log.New(nil)
	}
	return &dirWatcher{
		fsw:      fsw,
		debounce: debounce,
		onChange: onChange,
		onError:  onError,
		logger:   logger,
	}, nil
}

// add registers one directory with the watcher.
func (w *dirWatcher) add(dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch directory %q: %w", dir, err)
	}
	return nil
}

// run processes filesystem events until ctx is cancelled, then closes the
// underlying watcher. Every event resets the debounce timer; when it expires
// the onChange callback fires once for the whole burst.
func (w *dirWatcher) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify watcher", "err", err)
		}
	}()

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		w.onChange()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.mu.Lock()
			if w.timer == nil {
				w.timer = time.AfterFunc(w.debounce, fire)
			} else {
				w.timer.Reset(w.debounce)
			}
			w.mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			} else {
				w.logger.Warn("fsnotify error", "err", err)
			}
		}
	}
}
