package prefabs

import (
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
)

// Changes are held back until no file has changed for this long.
const debounce = 100 * time.Millisecond

const watchedOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// FileKind tells what a changed file holds.
type FileKind int

const (
	KindOther FileKind = iota
	KindSpec
	KindScript
)

func (k FileKind) String() string {
	switch k {
	case KindSpec:
		return "spec"
	case KindScript:
		return "script"
	default:
		return "other"
	}
}

// KindOf classifies path by extension.
func KindOf(path string) FileKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return KindSpec
	case ".tengo":
		return KindScript
	default:
		return KindOther
	}
}

// Change is one file that was written, created, renamed or removed.
type Change struct {
	Path string
	Kind FileKind
}

// Watcher batches changes to body, scene and script files under a set of
// directories. A batch is delivered once no watched file has changed for
// the debounce window.
type Watcher struct {
	fs      *fsnotify.Watcher
	changes chan []Change
	errs    chan error
	done    chan struct{}
	once    sync.Once
}

func NewWatcher(dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "prefabs: new watcher")
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, eris.Wrapf(err, "prefabs: watch %s", dir)
		}
	}

	w := &Watcher{
		fs:      fw,
		changes: make(chan []Change, 4),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Changes delivers batches sorted by path. It is closed when the watcher
// stops.
func (w *Watcher) Changes() <-chan []Change { return w.changes }

// Errors is closed when the watcher stops. Errors arriving while one is
// still unread are dropped.
func (w *Watcher) Errors() <-chan error { return w.errs }

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.errs)
	defer close(w.changes)

	pending := make(map[string]FileKind)
	timer := time.NewTimer(debounce)
	timer.Stop()
	var quiet <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			kind := KindOf(ev.Name)
			if kind == KindOther || !ev.Has(watchedOps) {
				continue
			}
			pending[ev.Name] = kind
			timer.Reset(debounce)
			quiet = timer.C
		case <-quiet:
			quiet = nil
			batch := make([]Change, 0, len(pending))
			for _, p := range slices.Sorted(maps.Keys(pending)) {
				batch = append(batch, Change{Path: p, Kind: pending[p]})
			}
			clear(pending)
			select {
			case w.changes <- batch:
			case <-w.done:
				return
			}
		case err, ok := <-w.fs.Errors:
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
