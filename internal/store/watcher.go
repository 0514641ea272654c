package store

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 150 * time.Millisecond

// Watcher reports writes to a database file made by other processes (or
// by us; reloading twice is harmless). sqlite writes through the -wal and
// -journal side files, so the directory is watched and filtered by name.
type Watcher struct {
	watcher  *fsnotify.Watcher
	names    map[string]bool
	onChange func(string)
	logger   *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

func NewWatcher(dbPath string, onChange func(string), logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(absPath)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		names: map[string]bool{
			absPath:              true,
			absPath + "-wal":     true,
			absPath + "-journal": true,
		},
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go w.watch(absPath)
	return w, nil
}

func (w *Watcher) watch(dbPath string) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 || !w.names[event.Name] {
				continue
			}
			// Debounce bursts of writes from one transaction.
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(watchDebounce, func() {
				select {
				case <-w.done:
					return
				default:
				}
				w.logger.Debug("database changed on disk", zap.String("path", dbPath))
				if w.onChange != nil {
					w.onChange(dbPath)
				}
			})
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch database", zap.Error(err))

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	close(w.done)
	return w.watcher.Close()
}
