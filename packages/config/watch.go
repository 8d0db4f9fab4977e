package config

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce absorbs editor save bursts before the file is re-read.
const watchDebounce = 300 * time.Millisecond

// Watch re-reads the YAML config file whenever it changes and invokes
// onChange with the freshly parsed port allowlist, so the SSRF guard can be
// updated without a restart. It returns a stop function.
func Watch(path string, onChange func(ports []int)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors often replace the file, which drops a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	go func() {
		var timer *time.Timer
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() {
					reload(target, onChange)
				})
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Debug("config watcher error", "error", werr)
			}
		}
	}()

	return watcher.Close, nil
}

func reload(path string, onChange func(ports []int)) {
	cfg := &Config{AllowedPorts: []int{80, 443}}
	if err := cfg.applyFile(path); err != nil {
		slog.Warn("config reload failed", "path", path, "error", err)
		return
	}
	slog.Info("config reloaded", "path", path, "allowed_ports", cfg.AllowedPorts)
	onChange(cfg.AllowedPorts)
}
