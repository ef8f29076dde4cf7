package media

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// RemovalHandler is called with the public URL of a stored file that
// disappeared from the songs directory.
type RemovalHandler func(fileURL string)

// Watcher monitors the songs directory for files removed outside of the
// application.
type Watcher struct {
	store    *Store
	onRemove RemovalHandler
	logger   *logrus.Logger
	watcher  *fsnotify.Watcher
	wg       sync.WaitGroup
	once     sync.Once
}

// NewWatcher creates a watcher for the store's directory; call Start to begin
func NewWatcher(store *Store, onRemove RemovalHandler, logger *logrus.Logger) *Watcher {
	return &Watcher{
		store:    store,
		onRemove: onRemove,
		logger:   logger,
	}
}

// Start initializes fsnotify and begins dispatching events
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(w.store.Dir()); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	w.wg.Add(1)
	go w.watchFiles()

	w.logger.WithField("songs_dir", w.store.Dir()).Info("File watcher started")
	return nil
}

// watchFiles selects on watcher channels and dispatches events
func (w *Watcher) watchFiles() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("File watcher error")
		}
	}
}

// handleFileEvent filters out part files and reports removals
func (w *Watcher) handleFileEvent(event fsnotify.Event) {
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".part") {
		return
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if !slices.Contains(w.store.allowedFormats, ext) {
		return
	}

	// Rename away counts as removal: the file is no longer under its URL
	if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	fileURL, ok := w.store.URLFor(event.Name)
	if !ok {
		return
	}

	w.logger.WithField("file_url", fileURL).Info("Stored audio file removed")
	if w.onRemove != nil {
		w.onRemove(fileURL)
	}
}

// Close stops the watcher and waits for the event loop to exit. Idempotent.
func (w *Watcher) Close() {
	w.once.Do(func() {
		if w.watcher != nil {
			w.watcher.Close()
			w.wg.Wait()
		}
	})
}
