package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay is how long the file must stay quiet before it is reread.
// One save often produces several events and a partly written file.
var reloadDelay = 250 * time.Millisecond

// Watch reloads the settings file once it has stopped changing for
// reloadDelay, until ctx is done.
// The parent directory is watched so editors that replace the file on save
// are handled.
func (s *SettingsStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch settings directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != target {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDelay)
				} else {
					timer.Reset(reloadDelay)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				s.reloads.Add(1)
				if err := s.Reload(); err != nil {
					slog.ErrorContext(ctx, "Settings reload failed, keeping previous settings", "path", s.path, "error", err)
					continue
				}
				slog.InfoContext(ctx, "Settings reloaded", "path", s.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Settings watcher error", "error", err)
			}
		}
	}()

	slog.InfoContext(ctx, "Watching settings file", "path", s.path)
	return nil
}
