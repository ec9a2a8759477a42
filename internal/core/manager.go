package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"marquee/internal/carousel"
	"marquee/internal/clients/metadata"
	"marquee/internal/clients/notifications"
	"marquee/internal/config"
	"marquee/internal/models"
	"marquee/internal/utils"
)

// MediaSource is the metadata surface the Manager uses.
type MediaSource interface {
	ItemSource
	Clips(ctx context.Context, kind models.MediaKind, id int) []models.Clip
}

type Manager struct {
	config     *config.Holder
	source     MediaSource
	catalog    *Catalog
	configured bool
	logger     *utils.Logger
	scheduler  *cron.Cron
	entry      cron.EntryID
	schedule   string
	sessions   *sessionRegistry
	clock      carousel.Clock

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewManager wires the catalog to source. configured reports whether the
// metadata backend has credentials and only feeds the status endpoint.
func NewManager(holder *config.Holder, source MediaSource, configured bool, logger *utils.Logger, notifiers ...notifications.Notifier) *Manager {
	cfg := holder.Get()
	return &Manager{
		config:     holder,
		source:     source,
		catalog:    NewCatalog(source, cfg.Catalog.Rows, logger, notifiers...),
		configured: configured,
		logger:     logger.Component("manager"),
		scheduler:  cron.New(),
		sessions:   newSessionRegistry(),
		clock:      carousel.RealClock{},
	}
}

func (m *Manager) Catalog() *Catalog { return m.catalog }

// StartScheduler registers the catalog refresh, kicks off the first one and
// follows configuration reloads until Stop.
func (m *Manager) StartScheduler(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)
	schedule := m.config.Get().Catalog.RefreshSchedule
	if err := m.reschedule(ctx, schedule); err != nil {
		m.cancel()
		return err
	}
	m.scheduler.Start()
	m.logger.Info().Str("schedule", schedule).Msg("scheduler started, performing initial catalog refresh")

	updates := make(chan *config.Config, 4)
	m.config.Subscribe(updates)

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.refresh(ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.followConfig(ctx, updates)
	}()
	return nil
}

// reschedule swaps the cron entry for schedule. The old entry stays if the
// new expression does not parse.
func (m *Manager) reschedule(ctx context.Context, schedule string) error {
	if schedule == m.schedule {
		return nil
	}
	id, err := m.scheduler.AddFunc(schedule, func() { m.refresh(ctx) })
	if err != nil {
		return fmt.Errorf("schedule catalog refresh %q: %w", schedule, err)
	}
	if m.schedule != "" {
		m.scheduler.Remove(m.entry)
	}
	m.entry, m.schedule = id, schedule
	return nil
}

func (m *Manager) followConfig(ctx context.Context, updates <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-updates:
			if err := m.reschedule(ctx, cfg.Catalog.RefreshSchedule); err != nil {
				m.logger.Error().Err(err).Msg("keeping previous refresh schedule")
			}
			if stale := m.catalog.SetRows(cfg.Catalog.Rows); len(stale) > 0 && ctx.Err() == nil {
				m.catalog.refreshNames(ctx, stale)
			}
		}
	}
}

func (m *Manager) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	m.catalog.RefreshAll(ctx)
}

// Stop halts the scheduler, waits for running refreshes and closes every
// open session.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.scheduler != nil {
		<-m.scheduler.Stop().Done()
	}
	m.wg.Wait()
	for _, s := range m.sessions.drain() {
		s.Close()
	}
	m.logger.Info().Msg("manager stopped")
}

// OpenSession starts a carousel over the current items of row. An empty row
// yields carousel.ErrNoItems.
func (m *Manager) OpenSession(row string, binding SessionBinding) (*carousel.Session, error) {
	snap, ok := m.catalog.Row(row)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRow, row)
	}
	if len(snap.Items) == 0 {
		return nil, carousel.ErrNoItems
	}

	opts := CarouselOptions(m.config.Get().Carousel)
	opts.OnChange = binding.OnChange
	opts.OnPreload = binding.OnPreload

	id := newSessionID()
	sess, err := carousel.NewSession(id, snap.Items, carousel.Deps{
		Provider: binding.Provider,
		Loader:   binding.Loader,
		Clock:    m.clock,
		Preload:  carousel.NewPreloadCache(),
		Logger:   sessionLogger(m.logger, row).Component("carousel"),
	}, opts)
	if err != nil {
		return nil, err
	}
	m.sessions.add(sess)
	m.logger.Info().
		Str(utils.FieldEvent, "session.opened").
		Str(utils.FieldSessionID, id).
		Str(utils.FieldRow, row).
		Int("items", len(snap.Items)).
		Msg("carousel session opened")
	return sess, nil
}

func (m *Manager) CloseSession(id string) error {
	sess, ok := m.sessions.remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Close()
	m.logger.Info().Str(utils.FieldEvent, "session.closed").Str(utils.FieldSessionID, id).Msg("carousel session closed")
	return nil
}

func (m *Manager) Session(id string) (*carousel.Session, bool) {
	return m.sessions.get(id)
}

// TrailerResolution is the clip choice for a single title.
type TrailerResolution struct {
	Clip    *models.Clip           `json:"clip"`
	Options []carousel.AudioOption `json:"audio_options"`
}

// ResolveTrailer picks the clip the carousel would play for a title,
// preferring the cached catalog copy over a fresh lookup.
func (m *Manager) ResolveTrailer(ctx context.Context, kind models.MediaKind, id int) TrailerResolution {
	var clips []models.Clip
	if item, ok := m.catalog.Item(kind, id); ok {
		clips = item.CandidateClips
	} else {
		clips = m.source.Clips(ctx, kind, id)
	}

	selector := carousel.NewClipSelector(m.config.Get().Carousel.ProviderSite, m.logger)
	res := TrailerResolution{Options: selector.AudioOptions(clips)}
	if clip, ok := selector.Resolve(clips); ok {
		res.Clip = &clip
	}
	return res
}

// Trending fetches a trending list directly, bypassing the catalog.
func (m *Manager) Trending(ctx context.Context, kind, window string) []models.MediaItem {
	return m.source.Items(ctx, metadata.Selector{Kind: kind, Window: window})
}

func (m *Manager) GetSystemStatus() map[string]any {
	rows := make(map[string]int)
	for _, r := range m.catalog.Rows() {
		rows[r.Name] = len(r.Items)
	}
	return map[string]any{
		"rows":            rows,
		"live_sessions":   m.sessions.len(),
		"tmdb_configured": m.configured,
		"process":         processStats(),
	}
}
