package cvar

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kiwec/neosu-sub001/errors"
	"github.com/kiwec/neosu-sub001/logger"
)

// DebouncePeriod coalesces rapid successive file-system events (editors
// frequently write a file in two or three syscalls) into one reload.
const DebouncePeriod = 500 * time.Millisecond

// Watcher reloads a Registry's client values from a config file whenever
// it changes on disk, ignoring writes the Watcher itself just made so a
// Save doesn't trigger its own Load.
type Watcher struct {
	log        *zap.SugaredLogger
	registry   *Registry
	configPath string
	watcher    *fsnotify.Watcher

	mu            sync.Mutex
	debounceTimer *time.Timer

	ownWrite atomic.Bool
}

// NewWatcher starts watching configPath for changes. The caller owns
// calling Start to begin delivering reloads.
func NewWatcher(registry *Registry, configPath string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}
	if err := fw.Add(configPath); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "watching config file: %s", configPath)
	}
	return &Watcher{
		log:        logger.ComponentLogger("cvar.watcher"),
		registry:   registry,
		configPath: configPath,
		watcher:    fw,
	}, nil
}

// Start begins delivering reloads on a background goroutine.
func (w *Watcher) Start() { go w.loop() }

// MarkOwnWrite suppresses the next file-change event, so Save doesn't
// trigger a pointless self-reload.
func (w *Watcher) MarkOwnWrite() { w.ownWrite.Store(true) }

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if w.ownWrite.Swap(false) {
				w.log.Debugw("cvar watcher ignoring own write", logger.FieldPath, event.Name)
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnw("cvar watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(DebouncePeriod, w.reload)
}

func (w *Watcher) reload() {
	v := viper.New()
	v.SetConfigFile(w.configPath)
	if err := v.ReadInConfig(); err != nil {
		w.log.Warnw("cvar config reload failed to read file", "error", err, logger.FieldPath, w.configPath)
		return
	}
	if err := w.registry.LoadFromViper(v); err != nil {
		w.log.Warnw("cvar config reload failed to apply", "error", err)
		return
	}
	w.log.Infow("cvar config reloaded", logger.FieldPath, w.configPath)
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
