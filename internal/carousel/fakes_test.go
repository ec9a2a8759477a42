package carousel

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marquee/internal/models"
	"marquee/internal/utils"
)

type fakeProvider struct {
	mu         sync.Mutex
	players    []*fakePlayer
	live       int
	maxLive    int
	failNext   error
	destroyErr error
}

func (f *fakeProvider) Instantiate(target, clipKey string, opts PlayerOptions, events PlayerEvents) (Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	p := &fakePlayer{
		provider: f,
		target:   target,
		key:      clipKey,
		opts:     opts,
		events:   events,
		state:    StateUnstarted,
		muted:    opts.Muted,
	}
	f.players = append(f.players, p)
	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}
	return p, nil
}

func (f *fakeProvider) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players)
}

func (f *fakeProvider) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

func (f *fakeProvider) last() *fakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.players) == 0 {
		return nil
	}
	return f.players[len(f.players)-1]
}

type fakePlayer struct {
	provider *fakeProvider
	target   string
	key      string
	opts     PlayerOptions
	events   PlayerEvents

	qualities []Quality
	position  float64
	state     PlayerState
	muted     bool
	plays     int
	requested []Quality
	destroyed bool
}

func (p *fakePlayer) Play() error {
	p.provider.mu.Lock()
	defer p.provider.mu.Unlock()
	p.plays++
	p.state = StatePlaying
	return nil
}

func (p *fakePlayer) Mute() error {
	p.provider.mu.Lock()
	defer p.provider.mu.Unlock()
	p.muted = true
	return nil
}

func (p *fakePlayer) Unmute() error {
	p.provider.mu.Lock()
	defer p.provider.mu.Unlock()
	p.muted = false
	return nil
}

func (p *fakePlayer) SetQuality(q Quality) error {
	p.provider.mu.Lock()
	defer p.provider.mu.Unlock()
	p.requested = append(p.requested, q)
	return nil
}

func (p *fakePlayer) AvailableQualities() []Quality {
	p.provider.mu.Lock()
	defer p.provider.mu.Unlock()
	return p.qualities
}

func (p *fakePlayer) CurrentPosition() float64 {
	p.provider.mu.Lock()
	defer p.provider.mu.Unlock()
	return p.position
}

func (p *fakePlayer) State() PlayerState {
	p.provider.mu.Lock()
	defer p.provider.mu.Unlock()
	return p.state
}

func (p *fakePlayer) Destroy() error {
	p.provider.mu.Lock()
	defer p.provider.mu.Unlock()
	if !p.destroyed {
		p.destroyed = true
		p.provider.live--
	}
	return p.provider.destroyErr
}

func (p *fakePlayer) setPosition(pos float64) {
	p.provider.mu.Lock()
	defer p.provider.mu.Unlock()
	p.position = pos
}

func (p *fakePlayer) snapshot() fakePlayer {
	p.provider.mu.Lock()
	defer p.provider.mu.Unlock()
	cp := *p
	cp.requested = append([]Quality(nil), p.requested...)
	return cp
}

func yt(key, lang, region string, kind models.ClipKind, official bool) models.Clip {
	return models.Clip{
		ExternalKey:  key,
		DisplayName:  key,
		LanguageCode: lang,
		RegionCode:   region,
		Kind:         kind,
		IsOfficial:   official,
		Site:         "YouTube",
	}
}

func testItems(n int) []models.MediaItem {
	items := make([]models.MediaItem, n)
	for i := range items {
		items[i] = models.MediaItem{
			ID:           100 + i,
			Kind:         models.MediaKindMovie,
			DisplayTitle: fmt.Sprintf("Movie %d", i),
			TitleLogo:    fmt.Sprintf("/logo%d.png", i),
			CandidateClips: []models.Clip{
				yt(fmt.Sprintf("clip%d", i), "es", "MX", models.ClipKindTrailer, true),
			},
		}
	}
	return items
}

type harness struct {
	ctrl     *Controller
	clock    *FakeClock
	provider *fakeProvider
	changes  int
	preloads []string
}

func newHarness(t *testing.T, items []models.MediaItem, opts Options, loader *Loader) *harness {
	t.Helper()
	h := &harness{
		clock:    NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		provider: &fakeProvider{},
	}
	opts.OnChange = func(Snapshot) { h.changes++ }
	opts.OnPreload = func(path string) { h.preloads = append(h.preloads, path) }

	ctrl, err := New(items, Deps{
		Provider: h.provider,
		Clock:    h.clock,
		Loader:   loader,
		Logger:   utils.NewNopLogger(),
	}, opts)
	require.NoError(t, err)
	h.ctrl = ctrl
	ctrl.Start()
	t.Cleanup(ctrl.Close)
	return h
}

// startTrailer hovers and waits out the delay, returning the new player.
func (h *harness) startTrailer(t *testing.T) *fakePlayer {
	t.Helper()
	h.ctrl.PointerEnter()
	h.clock.Advance(h.ctrl.opts.TrailerDelay)
	p := h.provider.last()
	require.NotNil(t, p, "expected a player after the trailer delay")
	return p
}

// ready fires OnReady the way a provider would.
func (p *fakePlayer) ready() {
	p.events.OnReady(p)
}
