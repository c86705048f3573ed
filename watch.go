package main

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// kernelWatcher reports edits to one kernel source file. Editors often
// replace files on save, so the parent directory is watched and events are
// filtered by name.
type kernelWatcher struct {
	w       *fsnotify.Watcher
	path    string
	changed chan struct{}
	done    chan struct{}
	log     *slog.Logger
}

func newKernelWatcher(path string, log *slog.Logger) (*kernelWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	kw := &kernelWatcher{
		w:       w,
		path:    abs,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
		log:     log,
	}
	go kw.loop()
	return kw, nil
}

func (kw *kernelWatcher) loop() {
	defer close(kw.done)
	for {
		select {
		case ev, ok := <-kw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != kw.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			kw.log.Debug("kernel source changed", "path", kw.path, "op", ev.Op.String())
			// Coalesce bursts of events into one pending recompile.
			select {
			case kw.changed <- struct{}{}:
			default:
			}
		case err, ok := <-kw.w.Errors:
			if !ok {
				return
			}
			kw.log.Warn("kernel watcher error", "err", err)
		}
	}
}

// Changed delivers one value per batch of edits.
func (kw *kernelWatcher) Changed() <-chan struct{} { return kw.changed }

func (kw *kernelWatcher) Close() error {
	err := kw.w.Close()
	<-kw.done
	return err
}
