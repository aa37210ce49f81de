package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"solari/internal/logging"
	"solari/internal/policy"
)

// PolicyWatcher watches the policy table file and reloads the gate when it
// changes on disk. Rapid successive saves are debounced; an invalid table is
// rejected by the gate and the previous table stays in force.
type PolicyWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	gate        *policy.Gate
	tablePath   string
	debounceDur time.Duration
	pending     bool
	pendingAt   time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	reloads  int
	rejected int
}

// NewPolicyWatcher creates a watcher for tablePath feeding gate.
func NewPolicyWatcher(tablePath string, gate *policy.Gate) (*PolicyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &PolicyWatcher{
		watcher:     watcher,
		gate:        gate,
		tablePath:   tablePath,
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watcher runs in a goroutine until
// Stop is called or ctx is cancelled.
func (w *PolicyWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.tablePath); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	logging.ConfigDebug("policy watcher: watching %s", w.tablePath)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (w *PolicyWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryConfig).Error("policy watcher: close failed: %v", err)
	}
}

// Stats reports how many reloads were applied and how many tables were
// rejected as invalid.
func (w *PolicyWatcher) Stats() (reloads, rejected int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads, w.rejected
}

func (w *PolicyWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = true
			w.pendingAt = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Error("policy watcher: %v", err)

		case <-ticker.C:
			w.maybeReload()
		}
	}
}

// maybeReload applies a pending change once the debounce window has passed.
func (w *PolicyWatcher) maybeReload() {
	w.mu.Lock()
	if !w.pending || time.Since(w.pendingAt) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	table, err := policy.LoadTable(w.tablePath)
	if err != nil {
		logging.Get(logging.CategoryConfig).Warn("policy watcher: rejected table: %v", err)
		w.mu.Lock()
		w.rejected++
		w.mu.Unlock()
		return
	}
	if err := w.gate.Reload(table); err != nil {
		logging.Get(logging.CategoryConfig).Warn("policy watcher: gate refused table: %v", err)
		w.mu.Lock()
		w.rejected++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	logging.ConfigDebug("policy watcher: table reloaded from %s", w.tablePath)
}
