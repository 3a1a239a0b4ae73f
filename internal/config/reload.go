/*
DESCRIPTION
  reload.go watches ConfigPath for changes and re-applies it to a live
  Config via Update, so that editing the config file on disk takes effect
  without restarting aoloopd.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ParseFile reads a "key = value" per line config file into a map suitable
// for Update.
func ParseFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	vars := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		vars[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: scan %s: %w", path, err)
	}
	return vars, nil
}

// Watcher reloads Config from its ConfigPath whenever the file is written,
// applying the new values via Update and re-running Validate.
type Watcher struct {
	watcher *fsnotify.Watcher
	cfg     *Config
	done    chan struct{}
}

// WatchReload starts watching cfg.ConfigPath for writes. Call Close to stop.
func WatchReload(cfg *Config) (*Watcher, error) {
	if cfg.ConfigPath == "" {
		return nil, fmt.Errorf("config: cannot watch an empty ConfigPath")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	if err := fw.Add(cfg.ConfigPath); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", cfg.ConfigPath, err)
	}

	w := &Watcher{watcher: fw, cfg: cfg, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			vars, err := ParseFile(w.cfg.ConfigPath)
			if err != nil {
				w.cfg.Logger.Warning("config reload failed", "error", err)
				continue
			}
			w.cfg.Update(vars)
			w.cfg.Validate()
			w.cfg.Logger.Info("config reloaded", "path", w.cfg.ConfigPath)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Warning("config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
