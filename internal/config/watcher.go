package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/altafino/attachment-store/internal/types"
)

// Watcher reloads a configuration file whenever it changes on disk
type Watcher struct {
	watcher    *fsnotify.Watcher
	path       string
	overrides  []Override
	logger     *slog.Logger
	reloadChan chan *types.Config

	stopOnce sync.Once
	done     chan struct{}
}

// StartWatcher watches the directory holding path so that editors replacing
// the file by rename are noticed too
func StartWatcher(path string, logger *slog.Logger, overrides ...Override) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	cw := &Watcher{
		watcher:    watcher,
		path:       abs,
		overrides:  overrides,
		logger:     logger.With("component", "config_watcher"),
		reloadChan: make(chan *types.Config, 1),
		done:       make(chan struct{}),
	}

	go cw.watch()
	return cw, nil
}

// ReloadChan receives every successfully reloaded configuration. It is closed
// once the watcher stops.
func (cw *Watcher) ReloadChan() <-chan *types.Config {
	return cw.reloadChan
}

func (cw *Watcher) watch() {
	defer close(cw.done)
	defer close(cw.reloadChan)

	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != cw.path {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				cw.handleConfigChange()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("watcher error", "error", err)
		}
	}
}

func (cw *Watcher) handleConfigChange() {
	cw.logger.Info("detected configuration change", "path", cw.path)

	cfg, err := Load(cw.path, cw.overrides...)
	if err != nil {
		cw.logger.Error("failed to reload configuration, keeping the current one",
			"error", err,
			"path", cw.path,
		)
		return
	}

	cw.logger.Info("configuration reloaded successfully")

	// Only the latest configuration matters to listeners
	select {
	case <-cw.reloadChan:
	default:
	}
	cw.reloadChan <- cfg
}

// Stop stops the watcher and closes the reload channel
func (cw *Watcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		if cerr := cw.watcher.Close(); cerr != nil {
			err = fmt.Errorf("failed to close watcher: %w", cerr)
		}
		<-cw.done
	})
	return err
}
