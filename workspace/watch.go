package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	synccit "github.com/synccit/synccit"
)

const (
	defaultDebounce = 200 * time.Millisecond
	subscriberQueue = 16
)

// Watcher publishes debounced refresh events for changes under a root.
type Watcher struct {
	root     string
	debounce time.Duration
	fw       *fsnotify.Watcher
	logger   *zap.Logger

	mu   sync.Mutex
	subs map[chan synccit.FSEvent]struct{}
}

// NewWatcher watches root and every visible subdirectory. Run must be called
// to start delivering events.
func NewWatcher(root string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     root,
		debounce: debounce,
		fw:       fw,
		logger:   logger,
		subs:     make(map[chan synccit.FSEvent]struct{}),
	}
	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers dir and its subdirectories, skipping hidden and opaque ones.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			w.logger.Debug("watch failed", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func skipDir(name string) bool {
	return opaqueDirs[name] || strings.HasPrefix(name, ".")
}

// Subscribe returns a channel of refresh events and a cancel function.
// Slow subscribers miss events rather than stall the watcher.
func (w *Watcher) Subscribe() (<-chan synccit.FSEvent, func()) {
	ch := make(chan synccit.FSEvent, subscriberQueue)
	w.mu.Lock()
	w.subs[ch] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, ch)
			w.mu.Unlock()
		})
	}
}

func (w *Watcher) publish(ev synccit.FSEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Run delivers events until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()

	pending := make(map[string]string)
	var order []string
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			op := opName(ev.Op)
			if op == "" {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && !skipDir(fi.Name()) {
					_ = w.addTree(ev.Name)
				}
			}
			if _, seen := pending[ev.Name]; !seen {
				order = append(order, ev.Name)
			}
			pending[ev.Name] = op
			if len(order) == 1 {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fs watcher error", zap.Error(err))

		case <-timer.C:
			ev := synccit.FSEvent{Type: "refresh", Changes: make([]synccit.FSChange, 0, len(order))}
			for _, p := range order {
				ev.Changes = append(ev.Changes, synccit.FSChange{Op: pending[p], Path: p})
			}
			pending = make(map[string]string)
			order = order[:0]
			w.publish(ev)
		}
	}
}

// opName maps an fsnotify op to the name sent to clients. Permission-only
// changes are ignored.
func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "created"
	case op.Has(fsnotify.Remove):
		return "deleted"
	case op.Has(fsnotify.Rename):
		return "renamed"
	case op.Has(fsnotify.Write):
		return "modified"
	default:
		return ""
	}
}
