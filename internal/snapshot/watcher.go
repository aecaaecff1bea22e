package snapshot

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind describes the type of file change detected.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota // Document edited
	ChangeRemoved                    // Document deleted or renamed away
	ChangeAdded                      // New document appeared
)

// Change represents a detected change below the shared store.
type Change struct {
	Kind ChangeKind
	File string // Absolute path
}

// Watcher monitors the shared store (recursively) for markdown changes using
// fsnotify.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	Changes  <-chan Change // Read-only external channel

	changes chan Change // Internal write channel
	stop    chan struct{}
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// NewWatcher creates a new watcher for the given directory tree.
func NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan Change, 16)
	return &Watcher{
		Dir:      dir,
		Debounce: 200 * time.Millisecond,
		Changes:  ch,
		changes:  ch,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		watcher:  fw,
	}, nil
}

// Start registers dir and every subdirectory, then begins watching.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels. Changes not yet received are dropped.
func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: track last event time and accumulated ops per file.
	type pendingEvent struct {
		at time.Time
		op fsnotify.Op
	}
	pending := make(map[string]pendingEvent)
	ticker := time.NewTicker(w.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				for file, p := range pending {
					w.emit(file, p.op)
				}
				return
			}

			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = w.watcher.Add(event.Name)
					continue
				}
			}
			if filepath.Ext(event.Name) != ".md" {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				p := pending[event.Name]
				pending[event.Name] = pendingEvent{at: time.Now(), op: p.op | event.Op}
			}

		case <-ticker.C:
			now := time.Now()
			for file, p := range pending {
				if now.Sub(p.at) >= w.Debounce {
					w.emit(file, p.op)
					delete(pending, file)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore watch errors; they're non-fatal.
		}
	}
}

func (w *Watcher) emit(file string, op fsnotify.Op) {
	kind := ChangeModified
	if _, err := os.Stat(file); err != nil {
		kind = ChangeRemoved
	} else if op.Has(fsnotify.Create) {
		kind = ChangeAdded
	}
	select {
	case w.changes <- Change{Kind: kind, File: file}:
	case <-w.stop:
	}
}
