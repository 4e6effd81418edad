// Package watch notices changes to template sources and reacts to them,
// typically by dropping compiled templates so the next render recompiles.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/CTAG07/Nepenthes/pkg/cache"
	"github.com/fsnotify/fsnotify"
)

// Filter reports whether a changed path is of interest.
type Filter func(path string) bool

// Handler receives the paths that changed during one debounce window, in
// sorted order and without duplicates.
type Handler func(paths []string)

// ExtensionFilter accepts paths ending in ext.
func ExtensionFilter(ext string) Filter {
	return func(path string) bool {
		return strings.HasSuffix(path, ext)
	}
}

// Watcher watches directory trees and reports changes in batches. Bursts of
// events, such as an editor saving through a temporary file, are grouped
// until no event arrived for the debounce delay.
type Watcher struct {
	logger  *slog.Logger
	fsw     *fsnotify.Watcher
	delay   time.Duration
	filter  Filter
	handler Handler
}

// New creates a Watcher. A nil filter accepts every path.
func New(logger *slog.Logger, delay time.Duration, filter Filter, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch handler is nil")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if filter == nil {
		filter = func(string) bool { return true }
	}
	return &Watcher{
		logger:  logger,
		fsw:     fsw,
		delay:   delay,
		filter:  filter,
		handler: handler,
	}, nil
}

// AddRecursive watches root and every directory below it. Directories
// created later are added as they appear.
func (w *Watcher) AddRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err = w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Run processes events until ctx is cancelled, then closes the watcher.
// Pending changes are flushed before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		_ = w.fsw.Close()
	}()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.delay)
	timer.Stop()
	defer timer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		clear(pending)
		w.logger.Debug("Template sources changed", "count", len(paths))
		w.handler(paths)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				flush()
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err = w.AddRecursive(ev.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			if (ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write)) || !w.filter(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.delay)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				flush()
				return nil
			}
			w.logger.Warn("File watcher error", "error", err)

		case <-timer.C:
			flush()
		}
	}
}

// ClearCache returns a Handler that removes every compiled template from m.
// Compiled templates are partitioned by device and configuration, so a
// changed source cannot be mapped to a single artifact.
func ClearCache(logger *slog.Logger, m *cache.Manager) Handler {
	return func(paths []string) {
		n, err := m.Clear()
		if err != nil {
			logger.Error("Failed to clear compiled templates", "error", err)
			return
		}
		logger.Info("Recompiling after template change", "changed", len(paths), "cleared", n)
	}
}
