package carousel

import (
	"errors"
	"time"

	"marquee/internal/models"
	"marquee/internal/utils"
)

var (
	ErrNoItems    = errors.New("carousel: no items")
	ErrOutOfRange = errors.New("carousel: index out of range")
	ErrClosed     = errors.New("carousel: closed")
)

type EndPolicy string

const (
	// EndStop tears the player down and leaves the backdrop showing.
	EndStop EndPolicy = "stop"
	// EndLoop restarts the same clip.
	EndLoop EndPolicy = "loop"
)

type Options struct {
	AutoPlayInterval time.Duration
	TrailerDelay     time.Duration
	SampleInterval   time.Duration
	StallThreshold   int
	StallEpsilon     float64
	QualityLadder    []Quality
	EndPolicy        EndPolicy
	Site             string
	Muted            bool
	Target           string
	Language         string

	// OnChange receives a snapshot after every observable transition.
	OnChange func(Snapshot)
	// OnPreload receives artwork paths worth fetching ahead of time.
	OnPreload func(path string)
}

func DefaultOptions() Options {
	return Options{
		AutoPlayInterval: 8 * time.Second,
		TrailerDelay:     2 * time.Second,
		SampleInterval:   2 * time.Second,
		StallThreshold:   3,
		StallEpsilon:     0.1,
		QualityLadder:    []Quality{"highres", "hd1080", "hd720"},
		EndPolicy:        EndStop,
		Site:             "YouTube",
		Target:           "hero-player",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.AutoPlayInterval <= 0 {
		o.AutoPlayInterval = d.AutoPlayInterval
	}
	if o.TrailerDelay <= 0 {
		o.TrailerDelay = d.TrailerDelay
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = d.SampleInterval
	}
	if o.StallThreshold <= 0 {
		o.StallThreshold = d.StallThreshold
	}
	if o.StallEpsilon <= 0 {
		o.StallEpsilon = d.StallEpsilon
	}
	if len(o.QualityLadder) == 0 {
		o.QualityLadder = d.QualityLadder
	}
	if o.EndPolicy != EndLoop {
		o.EndPolicy = EndStop
	}
	if o.Site == "" {
		o.Site = d.Site
	}
	if o.Target == "" {
		o.Target = d.Target
	}
	return o
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Provider Provider
	// Clock must deliver timer callbacks on the control goroutine.
	Clock  Clock
	Loader *Loader
	// Post moves provider and loader callbacks onto the control goroutine.
	// Nil runs them inline, which is only correct single-threaded.
	Post    func(func())
	Preload *PreloadCache
	Logger  *utils.Logger
}

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseArmed   Phase = "armed"
	PhasePlaying Phase = "playing"
)

// Snapshot is the externally visible state of a Controller.
type Snapshot struct {
	Index          int               `json:"index"`
	Count          int               `json:"count"`
	Item           *models.MediaItem `json:"item,omitempty"`
	Phase          Phase             `json:"phase"`
	Active         bool              `json:"active"`
	AutoPlaying    bool              `json:"autoplaying"`
	Clip           *models.Clip      `json:"clip,omitempty"`
	PlayerLive     bool              `json:"player_live"`
	PlayerReady    bool              `json:"player_ready"`
	Muted          bool              `json:"muted"`
	Quality        Quality           `json:"quality"`
	Reported       Quality           `json:"reported_quality,omitempty"`
	AudioOptions   []AudioOption     `json:"audio_options,omitempty"`
	AudioIndex     int               `json:"audio_index"`
	LibraryPending bool              `json:"library_pending,omitempty"`
}

type timerSlot struct {
	t  Timer
	id uint64
}

// playback is everything tied to one selected clip. It is replaced, never
// reused, so its token identifies callbacks that belong to it.
type playback struct {
	token   uint64
	clip    models.Clip
	player  Player
	ready   bool
	waiting bool // queued on the library loader
	failed  bool

	rung     int
	stalls   int
	lastPos  float64
	reported Quality
}

// Controller is the carousel and trailer state machine for one carousel.
// It is not safe for concurrent use; Session serializes access.
type Controller struct {
	items    []models.MediaItem
	opts     Options
	provider Provider
	clock    Clock
	loader   *Loader
	post     func(func())
	selector *ClipSelector
	preload  *PreloadCache
	logger   *utils.Logger

	index    int
	hovering bool
	focused  bool
	active   bool
	muted    bool

	autoTimer    timerSlot
	trailerTimer timerSlot
	sampleTimer  timerSlot
	timerSeq     uint64

	session    *playback
	sessionSeq uint64
	audio      []AudioOption
	audioIndex int

	started bool
	closed  bool
}

func New(items []models.MediaItem, deps Deps, opts Options) (*Controller, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if deps.Provider == nil {
		return nil, errors.New("carousel: provider is required")
	}
	opts = opts.withDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	clock := deps.Clock
	if clock == nil {
		clock = RealClock{}
	}
	loader := deps.Loader
	if loader == nil {
		loader = NewReadyLoader()
	}
	preload := deps.Preload
	if preload == nil {
		preload = NewPreloadCache()
	}

	return &Controller{
		items:      append([]models.MediaItem(nil), items...),
		opts:       opts,
		provider:   deps.Provider,
		clock:      clock,
		loader:     loader,
		post:       deps.Post,
		selector:   NewClipSelector(opts.Site, logger),
		preload:    preload,
		logger:     logger,
		muted:      opts.Muted,
		audioIndex: -1,
	}, nil
}

// Start begins auto-play and announces the initial state.
func (c *Controller) Start() {
	if c.closed || c.started {
		return
	}
	c.started = true
	sessionsLive.Inc()
	c.preloadAround()
	c.startAutoPlay()
	c.notify()
}

// Close cancels every timer and tears the player down. Later calls are no-ops.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.cancel(&c.autoTimer)
	c.cancel(&c.trailerTimer)
	c.endSession("closed")
	c.closed = true
	if c.started {
		sessionsLive.Dec()
	}
	c.logger.Debug().Str(utils.FieldEvent, "carousel.closed").Msg("carousel closed")
}

func (c *Controller) Index() int { return c.index }

func (c *Controller) Snapshot() Snapshot {
	item := c.items[c.index]
	snap := Snapshot{
		Index:       c.index,
		Count:       len(c.items),
		Item:        &item,
		Phase:       PhaseIdle,
		Active:      c.active,
		AutoPlaying: c.autoTimer.t != nil,
		Muted:       c.muted,
		Quality:     c.opts.QualityLadder[0],
		AudioIndex:  c.audioIndex,
	}
	if c.active {
		snap.Phase = PhaseArmed
	}
	if len(c.audio) > 0 {
		snap.AudioOptions = append([]AudioOption(nil), c.audio...)
	}
	if s := c.session; s != nil {
		clip := s.clip
		snap.Clip = &clip
		if s.player != nil || s.waiting {
			snap.Phase = PhasePlaying
		}
		snap.PlayerLive = s.player != nil
		snap.PlayerReady = s.ready
		snap.Quality = c.opts.QualityLadder[s.rung]
		snap.Reported = s.reported
		snap.LibraryPending = s.waiting
	}
	return snap
}

func (c *Controller) notify() {
	if c.closed || c.opts.OnChange == nil {
		return
	}
	c.opts.OnChange(c.Snapshot())
}

// dispatch runs f on the control goroutine.
func (c *Controller) dispatch(f func()) {
	if c.post == nil {
		f()
		return
	}
	c.post(f)
}

// schedule replaces whatever slot holds with a new timer. A callback that
// fires after its slot was cancelled or re-armed is dropped.
func (c *Controller) schedule(slot *timerSlot, d time.Duration, fn func()) {
	c.cancel(slot)
	c.timerSeq++
	id := c.timerSeq
	slot.id = id
	slot.t = c.clock.AfterFunc(d, func() {
		if c.closed || slot.id != id {
			return
		}
		slot.t = nil
		slot.id = 0
		fn()
	})
}

func (c *Controller) cancel(slot *timerSlot) {
	if slot.t != nil {
		slot.t.Stop()
	}
	slot.t = nil
	slot.id = 0
}

// current returns the live playback if token still identifies it.
func (c *Controller) current(token uint64) *playback {
	if c.closed || c.session == nil || c.session.token != token {
		return nil
	}
	return c.session
}
