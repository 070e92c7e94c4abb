// Package watcher monitors the documents root for lyrics files removed or
// renamed outside the app, so the owner can run the idempotent repair.
package watcher

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher wraps fsnotify over the documents root. Vanished .txt paths are
// delivered on the Missing channel; the consumer drains it on the foreground
// goroutine, so project mutation never happens on the watcher goroutine.
type Watcher struct {
	fs      *fsnotify.Watcher
	root    string
	missing chan string
	logger  *logrus.Logger
}

// New creates a watcher for the given documents root.
func New(root string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Watcher{
		fs:      fs,
		root:    root,
		missing: make(chan string, 16),
		logger:  logger,
	}, nil
}

// Missing returns the channel carrying paths of lyrics files that vanished
// from disk.
func (w *Watcher) Missing() <-chan string {
	return w.missing
}

// Start begins watching and dispatching events in a goroutine.
func (w *Watcher) Start() error {
	if err := w.fs.Add(w.root); err != nil {
		return err
	}

	go w.watchFiles()

	w.logger.WithField("root", w.root).Info("Lyrics file watcher started")
	return nil
}

// watchFiles selects on watcher channels and dispatches events.
func (w *Watcher) watchFiles() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("File watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !strings.EqualFold(filepath.Ext(event.Name), ".txt") {
		return
	}

	w.logger.WithField("path", event.Name).Info("Lyrics file vanished from disk")
	select {
	case w.missing <- event.Name:
	default:
		// Consumer is behind; the startup repair sweep catches what we drop.
		w.logger.WithField("path", event.Name).Warn("Missing-file queue full, dropping event")
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
