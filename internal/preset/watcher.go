// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package preset

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/passforge/internal/log"
	"github.com/ManuGH/passforge/internal/pipeline/model"
)

const defaultDebounce = 500 * time.Millisecond

// Holder keeps the current catalog and swaps it atomically on reload.
// Jobs already running keep the preset copy they started with.
type Holder struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	mu      sync.RWMutex
	current *Catalog

	listenMu  sync.RWMutex
	listeners []chan<- *Catalog

	wg sync.WaitGroup
}

// NewHolder loads path once. The initial load must succeed.
func NewHolder(path string) (*Holder, error) {
	c, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &Holder{
		path:     path,
		debounce: defaultDebounce,
		logger:   log.WithComponent("presets"),
		current:  c,
	}, nil
}

// Catalog returns the current catalog.
func (h *Holder) Catalog() *Catalog {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Get resolves name against the current catalog.
func (h *Holder) Get(name string) (*model.Preset, error) {
	return h.Catalog().Get(name)
}

// Reload re-reads the file. An invalid file leaves the current catalog in place.
func (h *Holder) Reload() error {
	c, err := LoadFile(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str(log.FieldEvent, "presets.reload_failed").Str(log.FieldPath, h.path).Msg("preset reload failed, keeping previous catalog")
		return fmt.Errorf("reload presets: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = c
	h.mu.Unlock()

	h.logger.Info().
		Str(log.FieldEvent, "presets.reload_success").
		Int("old_count", old.Len()).
		Int("new_count", c.Len()).
		Msg("preset catalog reloaded")
	h.notify(c)
	return nil
}

// RegisterListener receives every successfully reloaded catalog. Sends never block.
func (h *Holder) RegisterListener(ch chan<- *Catalog) {
	h.listenMu.Lock()
	defer h.listenMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notify(c *Catalog) {
	h.listenMu.RLock()
	defer h.listenMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- c:
		default:
			h.logger.Warn().Str(log.FieldEvent, "presets.listener_skip").Msg("skipped notifying listener (channel full)")
		}
	}
}

// Watch reloads the catalog on file changes until ctx is done. The parent
// directory is watched so editors that replace the file are handled.
func (h *Holder) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(h.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch preset directory %s: %w", dir, err)
	}
	h.logger.Info().Str(log.FieldEvent, "presets.watcher_started").Str(log.FieldPath, h.path).Msg("watching preset catalog")

	h.wg.Add(1)
	go h.watchLoop(ctx, w)
	return nil
}

// Wait blocks until the watch loop has exited.
func (h *Holder) Wait() {
	h.wg.Wait()
}

func (h *Holder) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer h.wg.Done()
	defer func() { _ = w.Close() }()

	target := filepath.Clean(h.path)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(log.FieldEvent, "presets.watcher_stopped").Msg("preset watcher stopped")
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)) {
				continue
			}
			h.logger.Debug().Str(log.FieldEvent, "presets.file_changed").Str("op", ev.Op.String()).Msg("preset catalog changed")
			// Debounce: editors emit bursts of events per save.
			if timer == nil {
				timer = time.NewTimer(h.debounce)
			} else {
				timer.Reset(h.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			_ = h.Reload()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str(log.FieldEvent, "presets.watcher_error").Msg("preset watcher error")
		}
	}
}
