package carousel

import (
	"math"

	"marquee/internal/utils"
)

// applyStartQuality requests the top rung, or the best rung the player
// actually offers when it lists its qualities.
func (c *Controller) applyStartQuality(s *playback) {
	ladder := c.opts.QualityLadder
	if available := s.player.AvailableQualities(); len(available) > 0 {
		offered := make(map[Quality]bool, len(available))
		for _, q := range available {
			offered[q] = true
		}
		for i := s.rung; i < len(ladder); i++ {
			if offered[ladder[i]] {
				s.rung = i
				break
			}
		}
	}
	if err := s.player.SetQuality(ladder[s.rung]); err != nil {
		c.logger.Warn().Err(err).Str(utils.FieldQuality, string(ladder[s.rung])).Msg("set quality failed")
	}
}

func (c *Controller) scheduleSample(s *playback) {
	token := s.token
	c.schedule(&c.sampleTimer, c.opts.SampleInterval, func() {
		c.sample(token)
	})
}

// sample compares the playback position with the previous sample. Only
// samples taken while playing count.
func (c *Controller) sample(token uint64) {
	s := c.current(token)
	if s == nil || !s.ready || s.player == nil {
		return
	}
	if s.player.State() == StatePlaying {
		pos := s.player.CurrentPosition()
		if math.Abs(pos-s.lastPos) < c.opts.StallEpsilon {
			s.stalls++
		} else if s.stalls > 0 {
			s.stalls--
		}
		s.lastPos = pos
		c.checkStalls(s)
	}
	if c.current(token) != nil {
		c.scheduleSample(s)
	}
}

func (c *Controller) checkStalls(s *playback) {
	if s.stalls <= c.opts.StallThreshold {
		return
	}
	s.stalls = 0
	c.downgrade(s)
}

// downgrade steps exactly one rung down. The rung never moves back up
// within a session.
func (c *Controller) downgrade(s *playback) {
	ladder := c.opts.QualityLadder
	if s.rung+1 >= len(ladder) {
		c.logger.Debug().Str(utils.FieldQuality, string(ladder[s.rung])).Msg("already at lowest quality")
		return
	}
	s.rung++
	q := ladder[s.rung]
	qualityDowngrades.WithLabelValues(string(q)).Inc()
	c.logger.Info().
		Str(utils.FieldEvent, "quality.downgrade").
		Str(utils.FieldClipKey, s.clip.ExternalKey).
		Str(utils.FieldQuality, string(q)).
		Msg("playback stalling, lowering quality")
	if s.player != nil {
		if err := s.player.SetQuality(q); err != nil {
			c.logger.Warn().Err(err).Str(utils.FieldQuality, string(q)).Msg("set quality failed")
		}
	}
	c.notify()
}
