package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tonimelisma/chemsync/internal/config"
)

// FsWatcher is the subset of *fsnotify.Watcher the watch loop uses, so
// tests can feed events directly.
type FsWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

// fsnotifyWrapper adapts *fsnotify.Watcher, whose channels are fields, to
// FsWatcher.
type fsnotifyWrapper struct {
	w *fsnotify.Watcher
}

func (f *fsnotifyWrapper) Add(name string) error         { return f.w.Add(name) }
func (f *fsnotifyWrapper) Close() error                  { return f.w.Close() }
func (f *fsnotifyWrapper) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWrapper) Errors() <-chan error          { return f.w.Errors }

// watchLoop repeats full runs every poll interval and reloads the config
// file when it changes. Every run starts from scratch.
type watchLoop struct {
	holder  *config.Holder
	env     config.EnvOverrides
	cli     config.CLIOverrides
	logger  *slog.Logger
	runOnce func(ctx context.Context, cfg *config.Config) error

	// watcher is created from fsnotify when nil.
	watcher FsWatcher
	// after returns the channel that fires when the next run is due.
	after func(d time.Duration) <-chan time.Time
}

// runWatch runs until ctx is canceled. A failed run is logged and retried
// at the next interval; only setup errors are returned.
func runWatch(ctx context.Context, w *watchLoop) error {
	if w.after == nil {
		w.after = time.After
	}

	if w.watcher == nil {
		fw, err := newConfigWatcher(w.holder.Path(), w.logger)
		if err != nil {
			return err
		}

		w.watcher = fw
	}

	if w.watcher != nil {
		defer w.watcher.Close()
	}

	w.logger.Info("watch mode started",
		slog.String("config_path", w.holder.Path()),
		slog.Duration("poll_interval", w.holder.Config().PollIntervalDuration()),
	)

	for {
		if err := w.runOnce(ctx, w.holder.Config()); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			w.logger.Error("sync run failed", slog.String("error", err.Error()))
		}

		if !w.wait(ctx) {
			w.logger.Info("watch mode stopped")
			return nil
		}
	}
}

// wait blocks until the next run is due, handling config changes in the
// meantime. It returns false when ctx is canceled.
func (w *watchLoop) wait(ctx context.Context) bool {
	due := w.after(w.holder.Config().PollIntervalDuration())

	var events <-chan fsnotify.Event
	var errs <-chan error

	if w.watcher != nil {
		events = w.watcher.Events()
		errs = w.watcher.Errors()
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-due:
			return true
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}

			if w.isConfigChange(ev) {
				w.reload()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			w.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *watchLoop) isConfigChange(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != filepath.Clean(w.holder.Path()) {
		return false
	}

	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}

// reload swaps in the edited config. A broken file keeps the previous one.
func (w *watchLoop) reload() {
	cfg, err := w.holder.Reload(w.env, w.cli)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config",
			slog.String("config_path", w.holder.Path()),
			slog.String("error", err.Error()),
		)

		return
	}

	w.logger.Info("config reloaded",
		slog.String("config_path", w.holder.Path()),
		slog.Duration("poll_interval", cfg.PollIntervalDuration()),
	)
}

// newConfigWatcher watches the directory holding the config file, since
// editors often replace the file by rename. Returns nil when there is no
// config file to watch.
func newConfigWatcher(path string, logger *slog.Logger) (FsWatcher, error) {
	if path == "" {
		return nil, nil
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config directory missing, reload disabled", slog.String("dir", dir))
		return nil, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &fsnotifyWrapper{w: fw}, nil
}
