package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a changed policy file must stay quiet before it
// is re-applied. Editors write in bursts; applying half a save is wasted
// work at best and a validation error at worst.
const settleDelay = 500 * time.Millisecond

// Watch blocks until ctx is done, re-applying the policy whenever the
// configured file changes. A broken edit is logged and the previously
// applied policy stays in force. Returns immediately when no file path is
// configured.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create policy watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the parent directory. Editors replace files by rename, which
	// a watch on the file itself would lose track of.
	target := filepath.Clean(m.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch policy directory: %w", err)
	}

	m.logger.Info("watching policy file", "path", target)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	scheduleApply := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(settleDelay, func() {
			if ctx.Err() != nil {
				return
			}
			if err := m.ApplyActive(ctx); err != nil {
				m.logger.Error("policy reload failed, keeping previous policy", "path", target, "error", err)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&fsnotify.Remove != 0 {
				m.logger.Warn("policy file removed, keeping last applied policy", "path", target)
				continue
			}
			scheduleApply()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("policy watcher error", "error", err)
		}
	}
}
