package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the bursts of write events editors and
// atomic-save tools produce for a single logical change.
const reloadDebounce = 100 * time.Millisecond

// Watcher reloads a config file when it changes on disk and hands the
// result to a callback.
type Watcher struct {
	path string
	fw   *fsnotify.Watcher
	fn   func(Config, error)

	mu      sync.Mutex
	pending *time.Timer
	done    chan struct{}
}

// Watch starts watching path. On every change the file is reloaded and
// fn is called with the result; load errors are passed through so the
// caller can decide whether to keep the previous configuration.
func Watch(path string, fn func(Config, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors that replace the file atomically
	// remove the watched inode otherwise.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path: path,
		fw:   fw,
		fn:   fn,
		done: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	close(w.done)
	return w.fw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(reloadDebounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		w.fn(Load(w.path))
	})
}
