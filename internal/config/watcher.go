package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 150 * time.Millisecond

// Watcher reloads the config file whenever it changes on disk and hands the
// result to onChange. The parent directory is watched so atomic
// rename-over saves are seen as well.
type Watcher struct {
	path     string
	logger   *slog.Logger
	debounce time.Duration
	onChange func(AppConfig)
}

func NewWatcher(path string, logger *slog.Logger, onChange func(AppConfig)) *Watcher {
	if logger == nil {
		logger = slog.Default().With("component", "config.watcher")
	}

	return &Watcher{
		path:     filepath.Clean(path),
		logger:   logger,
		debounce: defaultWatchDebounce,
		onChange: onChange,
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch config dir %q: %w", dir, err)
	}
	w.logger.Info("watching config", "path", w.path)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watch error", "error", err)
		case <-timerC:
			timerC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// Keep running on the last good config instead of jumping to defaults.
		w.logger.Warn("reload config failed, keeping current", "error", err)
		return
	}
	w.logger.Info("config changed on disk", "target", cfg.Connection.Target())
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
