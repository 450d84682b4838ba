package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/vuinput/vuinputd/internal/vlog"
	"github.com/vuinput/vuinputd/internal/vuerr"
)

// Watch re-reads path every time it changes on disk and sends the newly
// merged Config on the returned channel, until ctx is cancelled. The
// channel is closed on exit. base is cloned and used as the flag-resolved
// starting point for each reload, so a field set only by a flag survives
// file edits that don't mention it.
func Watch(ctx context.Context, path string, base *Config) (<-chan *Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, vuerr.Wrap(vuerr.Fatal, err, "resolving watched config path %q", path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, vuerr.Wrap(vuerr.Fatal, err, "creating fsnotify watcher")
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, vuerr.Wrap(vuerr.Fatal, err, "watching directory of %q", abs)
	}

	out := make(chan *Config)

	go func() {
		defer watcher.Close()
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				vlog.DedupedWarnf("config-watch-error", "fsnotify watcher error on %q: %v", abs, err)

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				reloaded := *base
				if err := mergeFile(&reloaded, abs); err != nil {
					vlog.DedupedErrorf("config-reload-error", "reloading %q: %v", abs, err)
					continue
				}

				select {
				case out <- &reloaded:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
