package watcher

import (
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 200 * time.Millisecond

// fileMeta is the size-and-mtime fast path that avoids hashing unchanged
// files on every raw event (spec.md §4.3 Debouncing).
type fileMeta struct {
	size    int64
	modTime time.Time
	hash    [32]byte
}

// Watcher recursively watches a set of directory roots and emits a
// debounced, content-hash-deduped stream of FileChangeEvent.
type Watcher struct {
	log      *zap.Logger
	fsw      *fsnotify.Watcher
	debounce time.Duration
	ignore   []string

	changes chan FileChangeEvent
	errs    chan error

	mu      sync.Mutex
	roots   map[string]bool
	pending map[string]*time.Timer
	meta    map[string]fileMeta

	closeOnce sync.Once
	done      chan struct{}
}

func New(log *zap.Logger, ignore []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if ignore == nil {
		ignore = DefaultIgnorePatterns
	}
	w := &Watcher{
		log:      log,
		fsw:      fsw,
		debounce: defaultDebounce,
		ignore:   ignore,
		changes:  make(chan FileChangeEvent, 256),
		errs:     make(chan error, 16),
		roots:    make(map[string]bool),
		pending:  make(map[string]*time.Timer),
		meta:     make(map[string]fileMeta),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Events returns the debounced FileChangeEvent stream.
func (w *Watcher) Events() <-chan FileChangeEvent { return w.changes }

// Errors returns the error stream (spec.md §4.3: "Emits ... error(err)").
func (w *Watcher) Errors() <-chan error { return w.errs }

// Watch adds paths to the watch set, recursively walking directories to
// add every subdirectory. Repeated calls for the same path are a no-op
// (spec.md §4.3: "Multiple Watch calls are idempotent per path").
func (w *Watcher) Watch(paths []string, recursive bool) error {
	for _, root := range paths {
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}

		w.mu.Lock()
		already := w.roots[abs]
		w.roots[abs] = true
		w.mu.Unlock()
		if already {
			continue
		}

		if err := w.addTree(abs, recursive); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) addTree(root string, recursive bool) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.fsw.Add(filepath.Dir(root))
	}
	if err := w.fsw.Add(root); err != nil {
		return err
	}
	if !recursive {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if matchesIgnore(path, w.ignore) {
			return filepath.SkipDir
		}
		if path != root {
			if err := w.fsw.Add(path); err != nil {
				w.log.Warn("failed to add watch", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
}

// Unwatch removes paths from the watch set; an empty slice removes
// everything (spec.md §4.3).
func (w *Watcher) Unwatch(paths []string) error {
	w.mu.Lock()
	if len(paths) == 0 {
		paths = make([]string, 0, len(w.roots))
		for p := range w.roots {
			paths = append(paths, p)
		}
	}
	w.mu.Unlock()

	for _, root := range paths {
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		w.mu.Lock()
		delete(w.roots, abs)
		w.mu.Unlock()
		w.fsw.Remove(abs)
	}
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRaw(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		case <-w.done:
			return
		}
	}
}

// handleRaw collapses a raw fsnotify event for a path into a debounced
// timer; fsnotify is non-recursive on Linux/BSD, so a directory Create
// re-adds that subdirectory to the watch set immediately rather than
// waiting for debounce to settle.
func (w *Watcher) handleRaw(ev fsnotify.Event) {
	if matchesIgnore(ev.Name, w.ignore) {
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			watched := false
			for root := range w.roots {
				if isUnder(root, ev.Name) {
					watched = true
					break
				}
			}
			w.mu.Unlock()
			if watched {
				w.addTree(ev.Name, true)
			}
		}
	}

	w.mu.Lock()
	if tmr, ok := w.pending[ev.Name]; ok {
		tmr.Stop()
	}
	w.pending[ev.Name] = time.AfterFunc(w.debounce, func() {
		w.settle(ev.Name)
	})
	w.mu.Unlock()
}

func (w *Watcher) settle(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		w.mu.Lock()
		_, existed := w.meta[path]
		delete(w.meta, path)
		w.mu.Unlock()
		if existed {
			w.emit(FileChangeEvent{Type: ChangeUnlink, AbsolutePath: path, DetectedAt: time.Now()})
		}
		return
	}
	if info.IsDir() {
		return
	}

	w.mu.Lock()
	prev, existed := w.meta[path]
	w.mu.Unlock()

	if existed && prev.size == info.Size() && prev.modTime.Equal(info.ModTime()) {
		return
	}

	hash, err := hashFile(path)
	if err != nil {
		select {
		case w.errs <- err:
		default:
		}
		return
	}

	w.mu.Lock()
	unchanged := existed && prev.hash == hash
	w.meta[path] = fileMeta{size: info.Size(), modTime: info.ModTime(), hash: hash}
	w.mu.Unlock()

	if unchanged {
		return
	}

	changeType := ChangeModify
	if !existed {
		changeType = ChangeAdd
	}
	w.emit(FileChangeEvent{Type: changeType, AbsolutePath: path, DetectedAt: time.Now()})
}

func (w *Watcher) emit(ev FileChangeEvent) {
	select {
	case w.changes <- ev:
	default:
	}
}

func hashFile(path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

func isUnder(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Close stops the underlying fsnotify watcher and all pending timers.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for _, tmr := range w.pending {
			tmr.Stop()
		}
		w.mu.Unlock()
		err = w.fsw.Close()
	})
	return err
}
