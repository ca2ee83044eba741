// Package watch reloads configuration files when they change on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce is how long a file must be quiet before it is reloaded.
const Debounce = 200 * time.Millisecond

// Target is a watched file and the function that applies its new contents.
// Reload must leave the previous configuration in place when it returns an error.
type Target struct {
	Path   string
	Reload func(path string) error
}

// EventCallback is called after every reload attempt. err is nil on success.
type EventCallback func(path string, err error)

// Watch watches the directories holding each target and reloads a target once its
// events have settled. It blocks until ctx is cancelled.
//
// Directories rather than files are watched so editors that save by renaming a
// temporary file over the original are still picked up.
func Watch(ctx context.Context, targets []Target, logger *slog.Logger, cb EventCallback) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: new watcher: %w", err)
	}
	defer w.Close()

	byPath := make(map[string]Target, len(targets))
	dirs := make(map[string]struct{})
	for _, t := range targets {
		abs, err := filepath.Abs(t.Path)
		if err != nil {
			return fmt.Errorf("watch: resolve %s: %w", t.Path, err)
		}
		byPath[abs] = t
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch: add %s: %w", dir, err)
		}
	}

	logger.Info("watcher: started", slog.Int("files", len(byPath)))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(Debounce)
			timerCh = timer.C
		} else {
			timer.Reset(Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			for abs := range pending {
				t := byPath[abs]
				err := t.Reload(t.Path)
				if err != nil {
					logger.Error("watcher: reload failed, keeping previous configuration",
						slog.String("path", t.Path),
						slog.String("error", err.Error()))
				} else {
					logger.Info("watcher: reloaded", slog.String("path", t.Path))
				}
				if cb != nil {
					cb(t.Path, err)
				}
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs := filepath.Clean(ev.Name)
			if _, watched := byPath[abs]; !watched {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			logger.Debug("watcher: change detected", slog.String("path", abs), slog.String("op", ev.Op.String()))
			pending[abs] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
