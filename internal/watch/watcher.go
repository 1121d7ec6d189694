// Package watch turns file system events under the stories directories into
// index invalidations.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/storybook/internal/index"
	"github.com/grovetools/storybook/logging"
)

// Invalidator is the part of the index generator the watcher drives.
type Invalidator interface {
	Specifiers() []*index.Specifier
	SpecifiersFor(absPath string) []*index.Specifier
	Invalidate(spec *index.Specifier, absPath string, removed bool)
}

// Watcher watches every specifier directory recursively.
type Watcher struct {
	watcher *fsnotify.Watcher
	target  Invalidator
	logger  *logrus.Entry

	mu      sync.Mutex
	watched map[string]bool
	files   map[string]func(path string)
}

// New creates a watcher over all of target's specifier directories.
// Directories that do not exist yet are skipped.
func New(target Invalidator) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher: fw,
		target:  target,
		logger:  logging.NewLogger("watcher"),
		watched: make(map[string]bool),
		files:   make(map[string]func(string)),
	}
	for _, spec := range target.Specifiers() {
		if err := w.addTree(spec.Directory); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// WatchFile calls fn whenever path is written or recreated. It is used for
// files outside the stories directories, such as the preview annotations.
func (w *Watcher) WatchFile(path string, fn func(path string)) error {
	path = filepath.Clean(path)
	w.mu.Lock()
	w.files[path] = fn
	w.mu.Unlock()
	return w.addDir(filepath.Dir(path))
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		w.logger.WithField("directory", dir).Debug("Not watching missing directory")
		return nil
	}
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// The directory may vanish while we walk it.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && (d.Name() == "node_modules" || d.Name() == ".git") {
			return filepath.SkipDir
		}
		return w.addDir(p)
	})
}

func (w *Watcher) addDir(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.watched[dir] = true
	w.logger.Debugf("Watching directory: %s", dir)
	return nil
}

// Start processes events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	w.mu.Lock()
	fileHook := w.files[path]
	w.mu.Unlock()
	if fileHook != nil {
		if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
			fileHook(path)
		}
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.directoryCreated(path)
			return
		}
		w.invalidate(path, false)
	case event.Op&fsnotify.Write != 0:
		w.invalidate(path, false)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		delete(w.watched, path)
		w.mu.Unlock()
		w.invalidate(path, true)
	}
}

// directoryCreated starts watching a new directory and picks up any story
// files written into it before the watch was in place.
func (w *Watcher) directoryCreated(dir string) {
	if err := w.addTree(dir); err != nil {
		w.logger.WithError(err).Warnf("Failed to watch new directory %s", dir)
		return
	}
	filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			w.invalidate(p, false)
		}
		return nil
	})
}

func (w *Watcher) invalidate(path string, removed bool) {
	specs := w.target.SpecifiersFor(path)
	if len(specs) == 0 {
		return
	}
	w.logger.WithFields(logrus.Fields{
		"file":    path,
		"removed": removed,
	}).Info("Story file changed")
	// Overlapping specifiers each hold their own copy of the file.
	for _, spec := range specs {
		w.target.Invalidate(spec, path, removed)
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
