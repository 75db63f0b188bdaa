package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ReloadFunc receives the freshly loaded config after a file change.
type ReloadFunc func(*Config)

// Watcher reloads the config file when it changes on disk. Editors tend to
// emit bursts of write events, so changes are debounced before reloading.
type Watcher struct {
	loader   *Loader
	onReload ReloadFunc
	logger   zerolog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewWatcher creates a config file watcher. The callback runs on the watcher
// goroutine after each successful reload; invalid configs are logged and skipped.
func NewWatcher(loader *Loader, logger zerolog.Logger, onReload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		loader:   loader,
		onReload: onReload,
		logger:   logger,
		debounce: 500 * time.Millisecond,
		watcher:  fw,
		stopCh:   make(chan struct{}),
	}

	// Watch the directory, not the file: many editors replace the file on save
	// and the original inode watch would go stale.
	configPath := loader.GetConfigPath()
	if err := fw.Add(filepath.Dir(configPath)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w.wg.Add(1)
	go w.run(configPath)

	return w, nil
}

func (w *Watcher) run(configPath string) {
	defer w.wg.Done()

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(configPath) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Config watcher error")

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Warn().Err(err).Msg("Config reload failed, keeping previous config")
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn().Err(err).Msg("Reloaded config invalid, keeping previous config")
		return
	}

	w.logger.Info().Msg("Config reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.stopped.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
	w.wg.Wait()
}
