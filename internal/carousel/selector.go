package carousel

import "marquee/internal/utils"

// Next moves to the following slide, wrapping at the end.
func (c *Controller) Next() {
	c.setIndex((c.index+1)%len(c.items), "next")
}

// Previous moves to the preceding slide, wrapping at the start.
func (c *Controller) Previous() {
	n := len(c.items)
	c.setIndex((c.index-1+n)%n, "previous")
}

// GoTo jumps to slide i. Jumping to the current slide still resets it.
func (c *Controller) GoTo(i int) error {
	if c.closed {
		return ErrClosed
	}
	if i < 0 || i >= len(c.items) {
		return ErrOutOfRange
	}
	c.setIndex(i, "goto")
	return nil
}

// setIndex is the single place the slide changes. Everything tied to the old
// slide is torn down before the new index becomes visible.
func (c *Controller) setIndex(i int, cause string) {
	if c.closed {
		return
	}
	c.cancel(&c.trailerTimer)
	c.endSession("slide_change")

	prev := c.index
	c.index = i
	c.logger.Debug().
		Str(utils.FieldEvent, "carousel.slide").
		Int("from", prev).
		Int(utils.FieldIndex, i).
		Int(utils.FieldItemID, c.items[i].ID).
		Str("cause", cause).
		Msg("slide changed")

	c.preloadAround()
	if c.active {
		c.armTrailer()
	} else {
		c.startAutoPlay()
	}
	c.notify()
}

// startAutoPlay (re)starts the rotation timer from a full interval.
func (c *Controller) startAutoPlay() {
	if c.closed || c.active {
		return
	}
	c.schedule(&c.autoTimer, c.opts.AutoPlayInterval, func() {
		c.setIndex((c.index+1)%len(c.items), "autoplay")
	})
}

func (c *Controller) stopAutoPlay() {
	c.cancel(&c.autoTimer)
}

func (c *Controller) preloadAround() {
	if c.opts.OnPreload == nil {
		return
	}
	n := len(c.items)
	for _, i := range []int{c.index, (c.index + 1) % n, (c.index - 1 + n) % n} {
		if path := c.items[i].TitleLogo; c.preload.Mark(path) {
			c.opts.OnPreload(path)
		}
	}
}
