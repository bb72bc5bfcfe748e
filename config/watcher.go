package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"

	"github.com/Vuzi/raspi-sensors/logging"
	"github.com/Vuzi/raspi-sensors/utils"
)

// DefaultWatchDelay is how long a config file must stay unchanged before it is read again.
const DefaultWatchDelay = 500 * time.Millisecond

// A Watcher delivers the config read from a file every time the file changes. Changes that do
// not produce a valid config are logged and skipped.
type Watcher struct {
	filePath string
	logger   logging.Logger
	watcher  *fsnotify.Watcher
	workers  utils.StoppableWorkers

	reloadMu sync.Mutex
	configs  chan *Config
}

// NewWatcher watches filePath. Only the latest unconsumed config is kept.
func NewWatcher(filePath string, delay time.Duration, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// editors often replace the file rather than write it, so watch its directory
	if err := fsw.Add(filepath.Dir(filePath)); err != nil {
		return nil, multierr.Combine(err, fsw.Close())
	}

	w := &Watcher{
		filePath: filepath.Clean(filePath),
		logger:   logger,
		watcher:  fsw,
		configs:  make(chan *Config, 1),
	}
	debounced := debounce.New(delay)
	w.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.filePath {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					debounced(func() { w.reload(ctx) })
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warnw("config watcher error", "error", err)
			}
		}
	})
	return w, nil
}

func (w *Watcher) reload(ctx context.Context) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	if ctx.Err() != nil {
		return
	}
	conf, err := Read(w.filePath)
	if err != nil {
		w.logger.Errorw("ignoring invalid config change", "file", w.filePath, "error", err)
		return
	}
	select {
	case <-w.configs:
	default:
	}
	w.configs <- conf
	w.logger.Infow("config changed", "file", w.filePath)
}

// Config returns a channel that receives every new valid config.
func (w *Watcher) Config() <-chan *Config {
	return w.configs
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	w.workers.Stop()
	return err
}
