package agent

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gottino/rmirror-cloud/internal/logger"
)

// watchedExtensions are the device file kinds worth uploading.
var watchedExtensions = map[string]bool{
	".rm":       true,
	".metadata": true,
	".content":  true,
}

func relevantPath(path string) bool {
	return watchedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Watcher turns raw fsnotify events into debounced per-path notifications.
//
// Devices write page files in bursts (several write events per save), so
// each path is held back for the debounce window and emitted once after the
// burst settles.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration
	out      chan string

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewWatcher creates a watcher over root and all its subdirectories.
func NewWatcher(root string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		root:     root,
		debounce: debounce,
		out:      make(chan string, 256),
		timers:   make(map[string]*time.Timer),
	}

	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Paths returns the channel of debounced changed paths.
func (w *Watcher) Paths() <-chan string {
	return w.out
}

// Close stops the watcher. Pending debounce timers are discarded.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				close(w.out)
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				close(w.out)
				return
			}
			logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	// New directories (notebook folders) must be watched as they appear.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
		return
	}
	if !relevantPath(event.Name) {
		return
	}

	w.schedule(event.Name)
}

// schedule arms (or re-arms) the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		select {
		case w.out <- path:
		default:
			logger.Warn("watcher queue full, dropping event", "path", path)
		}
	})
}
