package siteinfo

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a site file when it changes on disk.
type Watcher struct {
	fw   *fsnotify.Watcher
	done chan struct{}
	once sync.Once
}

// Watch calls onChange with the reloaded Info (or the load error) whenever
// path is written or created. The parent directory is watched so
// editors that save by renaming a temp file are noticed.
func Watch(path string, onChange func(Info, error)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("siteinfo: watch %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("siteinfo: watch %s: %w", path, err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("siteinfo: watch %s: %w", path, err)
	}
	w := &Watcher{fw: fw, done: make(chan struct{})}
	go w.loop(abs, onChange)
	return w, nil
}

func (w *Watcher) loop(path string, onChange func(Info, error)) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				onChange(Load(path))
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			onChange(Info{}, fmt.Errorf("siteinfo: watch: %w", err))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fw.Close()
	})
	return err
}
