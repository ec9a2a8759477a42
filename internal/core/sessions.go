package core

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"marquee/internal/carousel"
	"marquee/internal/config"
	"marquee/internal/utils"
)

var (
	ErrUnknownRow      = errors.New("unknown row")
	ErrSessionNotFound = errors.New("session not found")
)

// SessionBinding connects a carousel session to its remote player.
type SessionBinding struct {
	Provider  carousel.Provider
	Loader    *carousel.Loader
	OnChange  func(carousel.Snapshot)
	OnPreload func(path string)
}

// CarouselOptions converts the carousel config section into controller options.
func CarouselOptions(cfg config.CarouselConfig) carousel.Options {
	ladder := make([]carousel.Quality, 0, len(cfg.QualityLadder))
	for _, q := range cfg.QualityLadder {
		ladder = append(ladder, carousel.Quality(q))
	}
	return carousel.Options{
		AutoPlayInterval: cfg.AutoPlayInterval,
		TrailerDelay:     cfg.TrailerDelay,
		SampleInterval:   cfg.SampleInterval,
		StallThreshold:   cfg.StallThreshold,
		StallEpsilon:     cfg.StallEpsilon,
		QualityLadder:    ladder,
		EndPolicy:        carousel.EndPolicy(strings.ToLower(cfg.EndPolicy)),
		Site:             cfg.ProviderSite,
		Muted:            cfg.StartMuted,
		Target:           cfg.Target,
		Language:         cfg.PlayerLanguage,
	}
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*carousel.Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*carousel.Session)}
}

func newSessionID() string {
	return uuid.NewString()
}

func (r *sessionRegistry) add(s *carousel.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *sessionRegistry) remove(id string) (*carousel.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}

func (r *sessionRegistry) get(id string) (*carousel.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// drain removes and returns every session.
func (r *sessionRegistry) drain() []*carousel.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*carousel.Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, s)
		delete(r.sessions, id)
	}
	return out
}

func sessionLogger(logger *utils.Logger, row string) *utils.Logger {
	return logger.WithStr(utils.FieldRow, row)
}
