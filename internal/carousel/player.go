package carousel

// PlayerState mirrors the embedded player's numeric state codes.
type PlayerState int

const (
	StateUnstarted PlayerState = -1
	StateEnded     PlayerState = 0
	StatePlaying   PlayerState = 1
	StatePaused    PlayerState = 2
	StateBuffering PlayerState = 3
	StateCued      PlayerState = 5
)

func (s PlayerState) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateEnded:
		return "ended"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateCued:
		return "cued"
	}
	return "unknown"
}

// Quality is a provider quality rung name such as "hd1080".
type Quality string

// PlayerOptions are fixed when an instance is created.
type PlayerOptions struct {
	Autoplay bool    `json:"autoplay"`
	Muted    bool    `json:"muted"`
	Controls bool    `json:"controls"`
	Loop     bool    `json:"loop"`
	Quality  Quality `json:"quality"`
	Language string  `json:"language,omitempty"`
}

// PlayerEvents are invoked by the provider, from any goroutine.
type PlayerEvents struct {
	OnReady         func(p Player)
	OnStateChange   func(s PlayerState)
	OnQualityChange func(q Quality)
	OnError         func(code int)
}

// Player is one live embedded-player instance.
type Player interface {
	Play() error
	Mute() error
	Unmute() error
	SetQuality(q Quality) error
	AvailableQualities() []Quality
	// CurrentPosition is the playback position in seconds.
	CurrentPosition() float64
	State() PlayerState
	Destroy() error
}

// Provider creates player instances bound to a display target.
// Implementations must not invoke events synchronously from Instantiate.
type Provider interface {
	Instantiate(target, clipKey string, opts PlayerOptions, events PlayerEvents) (Player, error)
}
