package districts

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Store hands out the current lookup table and supports atomic replacement
// when an operator-supplied override file changes. Readers always see a
// complete table: swaps are pointer-level, never in-place edits.
type Store struct {
	current atomic.Pointer[Table]
}

// NewStore wraps an initial table.
func NewStore(table *Table) *Store {
	s := &Store{}
	s.current.Store(table)
	return s
}

// Table returns the current lookup table.
func (s *Store) Table() *Table {
	return s.current.Load()
}

// Replace swaps in a new table for subsequent lookups.
func (s *Store) Replace(table *Table) {
	if table == nil {
		return
	}
	s.current.Store(table)
}

// Watcher monitors the override dataset file and reloads it on change. Stop
// must be called to release filesystem resources.
type Watcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts the watcher and waits for the underlying goroutine to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// Watch wires fsnotify around the override file so edits take effect without
// a restart. A reload that fails to parse keeps the previous table in place.
func (s *Store) Watch(ctx context.Context, path string, logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("districts: no override file configured for watching")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("districts: watch: %w", err)
	}

	target := filepath.Clean(path)
	if abs, err := filepath.Abs(path); err == nil {
		target = filepath.Clean(abs)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		cancel()
		if closeErr := watcher.Close(); closeErr != nil && logger != nil {
			logger.Warn("district watcher close failed", slog.Any("error", closeErr))
		}
		return nil, fmt.Errorf("districts: watch add: %w", err)
	}

	done := make(chan struct{})
	w := &Watcher{cancel: cancel, done: done}

	go func() {
		defer close(done)
		defer func() {
			if err := watcher.Close(); err != nil && logger != nil {
				logger.Warn("district watcher close failed", slog.Any("error", err))
			}
		}()

		reload := func() {
			table, err := LoadFile(target)
			if err != nil {
				if logger != nil {
					logger.Error("district dataset reload failed", slog.Any("error", err))
				}
				return
			}
			s.Replace(table)
			if logger != nil {
				logger.Info("district dataset reloaded",
					slog.String("file", target),
					slog.Int("zips", table.Len()),
					slog.Int("skipped", len(table.Skipped())))
			}
		}

		// Editors commonly write via rename, so a short debounce collapses the
		// event bursts into a single reload.
		const debounce = 25 * time.Millisecond
		var reloadTimer *time.Timer
		var reloadSignal <-chan time.Time
		scheduleReload := func() {
			if reloadTimer == nil {
				reloadTimer = time.NewTimer(debounce)
			} else {
				if !reloadTimer.Stop() {
					select {
					case <-reloadTimer.C:
					default:
					}
				}
				reloadTimer.Reset(debounce)
			}
			reloadSignal = reloadTimer.C
		}

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-reloadSignal:
				reloadSignal = nil
				reload()
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && logger != nil {
					logger.Warn("district dataset file removed", slog.String("file", target))
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) != 0 {
					scheduleReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if logger != nil {
					logger.Error("district watcher error", slog.Any("error", err))
				}
			}
		}
	}()

	return w, nil
}
