package carousel

import (
	"fmt"

	"marquee/internal/utils"
)

// createPlayer instantiates the provider player for s. At most one instance
// is ever live: any instance s already holds is destroyed first.
func (c *Controller) createPlayer(s *playback) {
	c.destroyPlayer(s)
	s.failed = false
	s.ready = false
	s.rung = 0
	s.stalls = 0
	s.lastPos = 0

	token := s.token
	events := PlayerEvents{
		OnReady: func(p Player) {
			c.dispatch(func() { c.handleReady(token, p) })
		},
		OnStateChange: func(st PlayerState) {
			c.dispatch(func() { c.handleStateChange(token, st) })
		},
		OnQualityChange: func(q Quality) {
			c.dispatch(func() { c.handleQualityChange(token, q) })
		},
		OnError: func(code int) {
			c.dispatch(func() { c.handleError(token, code) })
		},
	}
	opts := PlayerOptions{
		Autoplay: true,
		Muted:    c.muted,
		Controls: false,
		Loop:     c.opts.EndPolicy == EndLoop,
		Quality:  c.opts.QualityLadder[0],
		Language: c.opts.Language,
	}

	p, err := c.provider.Instantiate(c.opts.Target, s.clip.ExternalKey, opts, events)
	if err != nil {
		providerErrors.WithLabelValues("instantiate").Inc()
		s.failed = true
		c.logger.Warn().Err(err).
			Str(utils.FieldEvent, "player.instantiate_failed").
			Str(utils.FieldClipKey, s.clip.ExternalKey).
			Msg("player could not be created, keeping backdrop")
		return
	}
	if c.current(token) == nil {
		// Stale by the time the provider returned.
		c.safeDestroy(p, s.clip.ExternalKey)
		return
	}
	s.player = p
	playersCreated.Inc()
	c.logger.Debug().
		Str(utils.FieldEvent, "player.created").
		Str(utils.FieldClipKey, s.clip.ExternalKey).
		Bool("muted", opts.Muted).
		Msg("player created")
}

// destroyPlayer tears down the instance held by s, if any. Safe to repeat.
func (c *Controller) destroyPlayer(s *playback) {
	if s == nil {
		return
	}
	if c.session == s {
		c.cancel(&c.sampleTimer)
	}
	s.ready = false
	p := s.player
	if p == nil {
		return
	}
	s.player = nil
	c.safeDestroy(p, s.clip.ExternalKey)
}

// safeDestroy never lets a provider teardown failure escape.
func (c *Controller) safeDestroy(p Player, key string) {
	defer func() {
		if r := recover(); r != nil {
			providerErrors.WithLabelValues("destroy").Inc()
			c.logger.Warn().
				Str(utils.FieldEvent, "player.destroy_panic").
				Str(utils.FieldClipKey, key).
				Str("panic", fmt.Sprint(r)).
				Msg("player destroy panicked")
		}
	}()
	playersDestroyed.Inc()
	if err := p.Destroy(); err != nil {
		providerErrors.WithLabelValues("destroy").Inc()
		c.logger.Warn().Err(err).
			Str(utils.FieldEvent, "player.destroy_failed").
			Str(utils.FieldClipKey, key).
			Msg("player destroy failed")
	}
}

func (c *Controller) handleReady(token uint64, p Player) {
	s := c.current(token)
	if s == nil {
		c.logger.Debug().Str(utils.FieldEvent, "player.stale_ready").Msg("ignoring ready from stale player")
		return
	}
	if s.player == nil {
		if s.failed || p == nil {
			return
		}
		s.player = p
	}
	s.ready = true

	c.applyStartQuality(s)
	c.applyMute(s)
	if err := s.player.Play(); err != nil {
		c.logger.Warn().Err(err).Str(utils.FieldClipKey, s.clip.ExternalKey).Msg("play failed")
	}
	s.stalls = 0
	s.lastPos = 0
	c.scheduleSample(s)

	c.logger.Debug().
		Str(utils.FieldEvent, "player.ready").
		Str(utils.FieldClipKey, s.clip.ExternalKey).
		Str(utils.FieldQuality, string(c.opts.QualityLadder[s.rung])).
		Msg("player ready")
	c.notify()
}

func (c *Controller) handleStateChange(token uint64, st PlayerState) {
	s := c.current(token)
	if s == nil || s.player == nil {
		return
	}
	switch st {
	case StateEnded:
		if c.opts.EndPolicy == EndLoop {
			if err := s.player.Play(); err != nil {
				c.logger.Warn().Err(err).Str(utils.FieldClipKey, s.clip.ExternalKey).Msg("replay failed")
			}
			return
		}
		c.endSession("ended")
		c.notify()
	case StateBuffering:
		s.stalls++
		c.checkStalls(s)
	}
}

func (c *Controller) handleQualityChange(token uint64, q Quality) {
	s := c.current(token)
	if s == nil {
		return
	}
	s.reported = q
	c.notify()
}

func (c *Controller) handleError(token uint64, code int) {
	s := c.current(token)
	if s == nil {
		return
	}
	providerErrors.WithLabelValues("playback").Inc()
	c.logger.Warn().
		Str(utils.FieldEvent, "player.error").
		Str(utils.FieldClipKey, s.clip.ExternalKey).
		Int("code", code).
		Msg("player reported an error, keeping backdrop")
	c.destroyPlayer(s)
	s.failed = true
	c.notify()
}

// ToggleMute flips the mute preference. It carries over to later players.
func (c *Controller) ToggleMute() {
	if c.closed {
		return
	}
	c.muted = !c.muted
	if s := c.session; s != nil && s.ready {
		c.applyMute(s)
	}
	c.notify()
}

func (c *Controller) applyMute(s *playback) {
	if s.player == nil {
		return
	}
	var err error
	if c.muted {
		err = s.player.Mute()
	} else {
		err = s.player.Unmute()
	}
	if err != nil {
		c.logger.Warn().Err(err).Bool("muted", c.muted).Msg("mute change failed")
	}
}
