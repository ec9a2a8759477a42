package config

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"marquee/internal/utils"
)

const reloadDebounce = 500 * time.Millisecond

// Holder owns the live configuration and swaps it when the file changes.
// Readers always get a complete, validated Config.
type Holder struct {
	mu      sync.RWMutex
	current *Config
	path    string
	logger  *utils.Logger

	listenersMu sync.RWMutex
	listeners   []chan<- *Config
}

func NewHolder(initial *Config, path string, logger *utils.Logger) *Holder {
	return &Holder{
		current: initial,
		path:    path,
		logger:  logger.Component("config"),
	}
}

// Get returns the current configuration. Callers must not mutate it.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload re-reads the file. An invalid file leaves the old config in place.
func (h *Holder) Reload() error {
	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str(utils.FieldEvent, "config.reload_failed").Msg("failed to load configuration")
		return fmt.Errorf("load config: %w", err)
	}
	if err := Validate(next); err != nil {
		h.logger.Error().Err(err).Str(utils.FieldEvent, "config.validation_failed").Msg("new configuration failed validation")
		return fmt.Errorf("validate config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = next
	h.mu.Unlock()

	h.logChanges(old, next)
	h.notify(next)
	h.logger.Info().Str(utils.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// Watch starts an fsnotify watcher on the config file until ctx is done.
// A missing path disables watching.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(h.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config file: %w", err)
	}

	h.logger.Info().Str(utils.FieldEvent, "config.watcher_started").Str("path", h.path).Msg("watching config file")
	go h.watchLoop(ctx, watcher)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		_ = watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				_ = h.Reload()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str(utils.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Subscribe registers a channel that receives each successfully reloaded config.
// Sends are non-blocking; a full channel misses the update.
func (h *Holder) Subscribe(ch chan<- *Config) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notify(cfg *Config) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str(utils.FieldEvent, "config.listener_skip").Msg("listener channel full")
		}
	}
}

func (h *Holder) logChanges(old, next *Config) {
	if old.Carousel.TrailerDelay != next.Carousel.TrailerDelay {
		h.logger.Info().Dur("old", old.Carousel.TrailerDelay).Dur("new", next.Carousel.TrailerDelay).Msg("config changed: carousel.trailer_delay")
	}
	if old.Carousel.AutoPlayInterval != next.Carousel.AutoPlayInterval {
		h.logger.Info().Dur("old", old.Carousel.AutoPlayInterval).Dur("new", next.Carousel.AutoPlayInterval).Msg("config changed: carousel.autoplay_interval")
	}
	if old.Carousel.EndPolicy != next.Carousel.EndPolicy {
		h.logger.Info().Str("old", old.Carousel.EndPolicy).Str("new", next.Carousel.EndPolicy).Msg("config changed: carousel.end_policy")
	}
	if old.Catalog.RefreshSchedule != next.Catalog.RefreshSchedule {
		h.logger.Info().Str("old", old.Catalog.RefreshSchedule).Str("new", next.Catalog.RefreshSchedule).Msg("config changed: catalog.refresh_schedule")
	}
	if !slices.Equal(old.Catalog.Rows, next.Catalog.Rows) {
		h.logger.Info().Int("old", len(old.Catalog.Rows)).Int("new", len(next.Catalog.Rows)).Msg("config changed: catalog.rows")
	}
}
