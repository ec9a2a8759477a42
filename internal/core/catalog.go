package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"marquee/internal/clients/metadata"
	"marquee/internal/clients/notifications"
	"marquee/internal/config"
	"marquee/internal/models"
	"marquee/internal/utils"
)

// ItemSource produces the items for one row. metadata.Provider is the
// production implementation.
type ItemSource interface {
	Items(ctx context.Context, sel metadata.Selector) []models.MediaItem
}

// RowSnapshot is the last good item list of one configured row.
type RowSnapshot struct {
	Name      string             `json:"name"`
	Kind      string             `json:"kind"`
	Window    string             `json:"window"`
	Items     []models.MediaItem `json:"items"`
	UpdatedAt time.Time          `json:"updated_at,omitempty"`
}

// Catalog caches one snapshot per row. A refresh that comes back empty
// keeps the previous snapshot.
type Catalog struct {
	source    ItemSource
	rows      []config.RowConfig
	logger    *utils.Logger
	group     singleflight.Group
	notifiers []notifications.Notifier

	mu        sync.RWMutex
	snapshots map[string]RowSnapshot
	failing   map[string]bool
}

// NewCatalog builds empty rows. notifiers hear about rows going empty and
// coming back.
func NewCatalog(source ItemSource, rows []config.RowConfig, logger *utils.Logger, notifiers ...notifications.Notifier) *Catalog {
	c := &Catalog{
		source:    source,
		rows:      append([]config.RowConfig(nil), rows...),
		logger:    logger.Component("catalog"),
		notifiers: notifiers,
		snapshots: make(map[string]RowSnapshot, len(rows)),
		failing:   make(map[string]bool, len(rows)),
	}
	for _, r := range rows {
		c.snapshots[r.Name] = RowSnapshot{Name: r.Name, Kind: r.Kind, Window: r.Window, Items: []models.MediaItem{}}
	}
	return c
}

// Rows returns every row in configuration order.
func (c *Catalog) Rows() []RowSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]RowSnapshot, 0, len(c.rows))
	for _, r := range c.rows {
		out = append(out, c.snapshots[r.Name])
	}
	return out
}

// Row returns one row; false if no such row is configured.
func (c *Catalog) Row(name string) (RowSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.snapshots[name]
	return snap, ok
}

// Item finds a title in any row.
func (c *Catalog) Item(kind models.MediaKind, id int) (models.MediaItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, snap := range c.snapshots {
		for _, item := range snap.Items {
			if item.ID == id && item.Kind == kind {
				return item, true
			}
		}
	}
	return models.MediaItem{}, false
}

// Refresh re-fetches one row. Concurrent refreshes of the same row share a
// single fetch.
func (c *Catalog) Refresh(ctx context.Context, name string) (RowSnapshot, error) {
	row, ok := c.rowConfig(name)
	if !ok {
		return RowSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownRow, name)
	}

	key := name + "|" + row.Kind + "|" + row.Window
	v, _, shared := c.group.Do(key, func() (any, error) {
		start := time.Now()
		items := c.source.Items(ctx, metadata.Selector{Kind: row.Kind, Window: row.Window})

		c.mu.Lock()
		defer c.mu.Unlock()
		prev := c.snapshots[name]
		if cur, ok := c.rowConfigLocked(name); !ok || cur != row {
			c.logger.Debug().Str(utils.FieldRow, name).Msg("row changed during refresh, discarding result")
			return prev, nil
		}
		if len(items) == 0 {
			c.logger.Warn().
				Str(utils.FieldEvent, "catalog.refresh_empty").
				Str(utils.FieldRow, name).
				Int("kept", len(prev.Items)).
				Msg("refresh returned nothing, keeping previous snapshot")
			if !c.failing[name] {
				c.failing[name] = true
				kept := len(prev.Items)
				c.notify(func(n notifications.Notifier) { n.NotifyRowEmpty(name, kept) })
			}
			return prev, nil
		}
		next := RowSnapshot{Name: name, Kind: row.Kind, Window: row.Window, Items: items, UpdatedAt: time.Now()}
		c.snapshots[name] = next
		if c.failing[name] {
			delete(c.failing, name)
			count := len(items)
			c.notify(func(n notifications.Notifier) { n.NotifyRowRecovered(name, count) })
		}
		c.logger.Info().
			Str(utils.FieldEvent, "catalog.refreshed").
			Str(utils.FieldRow, name).
			Int("count", len(items)).
			Dur("took", time.Since(start)).
			Msg("row refreshed")
		return next, nil
	})
	if shared {
		c.logger.Debug().Str(utils.FieldRow, name).Msg("joined in-flight refresh")
	}
	return v.(RowSnapshot), nil
}

// RefreshAll refreshes every row concurrently and waits for all of them.
func (c *Catalog) RefreshAll(ctx context.Context) {
	c.mu.RLock()
	names := make([]string, 0, len(c.rows))
	for _, r := range c.rows {
		names = append(names, r.Name)
	}
	c.mu.RUnlock()
	c.refreshNames(ctx, names)
}

func (c *Catalog) refreshNames(ctx context.Context, names []string) {
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, _ = c.Refresh(ctx, name)
		}(name)
	}
	wg.Wait()
}

// SetRows swaps the row configuration. Rows that keep their kind and window
// keep their snapshot; new or changed rows start empty and are returned so
// the caller can refresh them.
func (c *Catalog) SetRows(rows []config.RowConfig) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := make(map[string]config.RowConfig, len(c.rows))
	for _, r := range c.rows {
		old[r.Name] = r
	}
	snapshots := make(map[string]RowSnapshot, len(rows))
	var stale []string
	for _, r := range rows {
		if prev, ok := old[r.Name]; ok && prev == r {
			snapshots[r.Name] = c.snapshots[r.Name]
			continue
		}
		snapshots[r.Name] = RowSnapshot{Name: r.Name, Kind: r.Kind, Window: r.Window, Items: []models.MediaItem{}}
		delete(c.failing, r.Name)
		stale = append(stale, r.Name)
	}
	removed := 0
	for name := range old {
		if _, ok := snapshots[name]; !ok {
			delete(c.failing, name)
			removed++
		}
	}
	c.rows = append([]config.RowConfig(nil), rows...)
	c.snapshots = snapshots

	if len(stale) > 0 || removed > 0 {
		c.logger.Info().
			Str(utils.FieldEvent, "catalog.rows_changed").
			Strs("refresh", stale).
			Int("removed", removed).
			Msg("row configuration changed")
	}
	return stale
}

// notify fans out to every notifier without holding up the refresh.
func (c *Catalog) notify(send func(notifications.Notifier)) {
	for _, n := range c.notifiers {
		go send(n)
	}
}

func (c *Catalog) rowConfig(name string) (config.RowConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rowConfigLocked(name)
}

func (c *Catalog) rowConfigLocked(name string) (config.RowConfig, bool) {
	for _, r := range c.rows {
		if r.Name == name {
			return r, true
		}
	}
	return config.RowConfig{}, false
}
