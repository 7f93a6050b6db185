package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"webenv/internal/envconfig"
)

// Holder holds the current Firebase web config and reloads it on demand or
// when one of the watched files changes. A failed reload keeps the previous
// record.
type Holder struct {
	mu      sync.RWMutex
	current envconfig.Loaded

	loader   RecordLoader
	paths    []string
	debounce time.Duration
	logger   envconfig.Logger
	metrics  envconfig.Metrics

	watcher *fsnotify.Watcher
	done    chan struct{}

	timerMu sync.Mutex
	timer   *time.Timer

	listenersMu sync.RWMutex
	listeners   []chan<- envconfig.Loaded
}

// NewHolder creates a holder seeded with an already loaded record.
func NewHolder(initial envconfig.Loaded, loader RecordLoader, paths []string, debounce time.Duration, logger envconfig.Logger, metrics envconfig.Metrics) *Holder {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	metrics.SetMissingFields(len(initial.Config.Missing()))
	return &Holder{
		current:  initial,
		loader:   loader,
		paths:    paths,
		debounce: debounce,
		logger:   logger.With("component", "config"),
		metrics:  metrics,
	}
}

// Get returns the current record.
func (h *Holder) Get() envconfig.Loaded {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Config returns the current Firebase web config.
func (h *Holder) Config() envconfig.FirebaseConfig {
	return h.Get().Config
}

// Reload loads the record again. On failure the old record stays in place
// and the returned error wraps ErrReloadFailed.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Debug("reloading firebase config")

	next, err := h.loader.Load()
	if err != nil {
		h.metrics.IncReloads("failure")
		h.logger.Error("firebase config reload failed, keeping previous config", "error", err)
		return fmt.Errorf("%w: %w", envconfig.ErrReloadFailed, err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.mu.Unlock()

	h.metrics.IncReloads("success")
	h.metrics.SetMissingFields(len(next.Config.Missing()))

	h.notifyListeners(next)
	h.logChanges(prev, next)

	return nil
}

// StartWatcher watches the parent directories of the configured paths and
// reloads once changes settle. Files replaced by rename, or created after
// startup, are picked up as well.
func (h *Holder) StartWatcher(ctx context.Context) error {
	if len(h.paths) == 0 {
		h.logger.Info("config watcher disabled, nothing to watch")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	targets := make(map[string]struct{}, len(h.paths))
	dirs := make(map[string]struct{})
	for _, p := range h.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = watcher.Close()
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	h.watcher = watcher
	h.done = make(chan struct{})

	h.logger.Info("watching firebase config files", "paths", h.paths, "debounce", h.debounce.String())

	go h.watchLoop(ctx, watcher, targets)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, targets map[string]struct{}) {
	defer close(h.done)
	defer h.stopTimer()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("config watcher stopped")
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if _, watched := targets[filepath.Clean(event.Name)]; !watched {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				h.logger.Debug("config file changed", "file", event.Name, "op", event.Op.String())
				h.schedule(ctx)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error("config watcher error", "error", err)
		}
	}
}

// schedule resets the debounce timer.
func (h *Holder) schedule(ctx context.Context) {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(h.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		_ = h.Reload(ctx)
	})
}

func (h *Holder) stopTimer() {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// Stop stops the watcher, if running, and waits for its loop to exit.
func (h *Holder) Stop() {
	if h.watcher == nil {
		return
	}
	_ = h.watcher.Close()
	<-h.done
}

// RegisterListener registers a channel that receives the record after every
// successful reload. Sends never block; a full channel misses the update.
func (h *Holder) RegisterListener(ch chan<- envconfig.Loaded) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notifyListeners(next envconfig.Loaded) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()

	for _, ch := range h.listeners {
		select {
		case ch <- next:
		default:
			h.logger.Warn("skipped notifying config listener, channel full")
		}
	}
}

func (h *Holder) logChanges(prev, next envconfig.Loaded) {
	var changed []string
	for _, f := range next.Config.Fields() {
		if old, _ := prev.Config.Get(f.Key); old != f.Value {
			changed = append(changed, f.Key)
		}
	}

	if len(changed) == 0 {
		h.logger.Info("firebase config reloaded, no changes", "fingerprint", next.Config.Fingerprint())
		return
	}
	h.logger.Info("firebase config reloaded",
		"changed", changed,
		"old_fingerprint", prev.Config.Fingerprint(),
		"fingerprint", next.Config.Fingerprint(),
		"source", next.Primary().String(),
	)
}
