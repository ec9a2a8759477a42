package carousel

import (
	"marquee/internal/models"
	"marquee/internal/utils"
)

// armTrailer starts the hover delay for the current slide.
func (c *Controller) armTrailer() {
	if c.closed || !c.active {
		return
	}
	c.schedule(&c.trailerTimer, c.opts.TrailerDelay, c.onTrailerDelay)
}

func (c *Controller) onTrailerDelay() {
	if !c.active {
		return
	}
	item := c.items[c.index]
	clip, ok := c.selector.Resolve(item.CandidateClips)
	if !ok {
		clipResolutions.WithLabelValues("none").Inc()
		c.logger.Debug().
			Str(utils.FieldEvent, "trailer.none").
			Int(utils.FieldItemID, item.ID).
			Int("candidates", len(item.CandidateClips)).
			Msg("no playable trailer, keeping backdrop")
		c.notify()
		return
	}
	clipResolutions.WithLabelValues("found").Inc()

	options := c.selector.AudioOptions(item.CandidateClips)
	c.startSession(clip)
	c.audio = options
	c.audioIndex = audioIndexOf(options, clip.ExternalKey)
	c.notify()
}

// SelectAudio restarts playback on audio option i for the current slide.
func (c *Controller) SelectAudio(i int) error {
	if c.closed {
		return ErrClosed
	}
	if i < 0 || i >= len(c.audio) {
		return ErrOutOfRange
	}
	if i == c.audioIndex && c.session != nil && !c.session.failed {
		return nil
	}
	options := c.audio
	c.startSession(options[i].Clip)
	c.audio = options
	c.audioIndex = i
	c.logger.Debug().
		Str(utils.FieldEvent, "trailer.audio_selected").
		Str("label", options[i].Label).
		Str(utils.FieldClipKey, options[i].Clip.ExternalKey).
		Msg("audio option selected")
	c.notify()
	return nil
}

// startSession replaces any current playback with a fresh one on clip.
// Quality restarts from the top rung.
func (c *Controller) startSession(clip models.Clip) {
	c.endSession("replaced")
	c.sessionSeq++
	s := &playback{token: c.sessionSeq, clip: clip}
	c.session = s

	c.logger.Info().
		Str(utils.FieldEvent, "trailer.start").
		Int(utils.FieldItemID, c.items[c.index].ID).
		Str(utils.FieldClipKey, clip.ExternalKey).
		Str("language", clip.LanguageCode).
		Msg("starting trailer")

	if c.loader.IsReady() {
		c.createPlayer(s)
		return
	}

	s.waiting = true
	token := s.token
	c.loader.OnReady(func() {
		c.dispatch(func() {
			s := c.current(token)
			if s == nil || !s.waiting {
				return
			}
			s.waiting = false
			c.createPlayer(s)
			c.notify()
		})
	})
	c.loader.Ensure()
}

// endSession drops the selected clip, its player and its audio options.
func (c *Controller) endSession(reason string) {
	s := c.session
	if s == nil {
		return
	}
	c.destroyPlayer(s)
	c.session = nil
	c.audio = nil
	c.audioIndex = -1
	c.logger.Debug().
		Str(utils.FieldEvent, "trailer.end").
		Str(utils.FieldClipKey, s.clip.ExternalKey).
		Str("reason", reason).
		Msg("trailer session ended")
}

func audioIndexOf(options []AudioOption, key string) int {
	for i, o := range options {
		if o.Clip.ExternalKey == key {
			return i
		}
	}
	return -1
}
