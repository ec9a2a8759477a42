package carousel

import "marquee/internal/utils"

func (c *Controller) PointerEnter() {
	c.hovering = true
	c.updateActivation()
}

func (c *Controller) PointerLeave() {
	c.hovering = false
	c.updateActivation()
}

func (c *Controller) FocusIn() {
	c.focused = true
	c.updateActivation()
}

// FocusOut clears focus unless it moved to another element inside the carousel.
func (c *Controller) FocusOut(nextInside bool) {
	if nextInside {
		return
	}
	c.focused = false
	c.updateActivation()
}

func (c *Controller) Active() bool { return c.active }

// updateActivation acts only when hovering||focused actually flips.
func (c *Controller) updateActivation() {
	if c.closed {
		return
	}
	active := c.hovering || c.focused
	if active == c.active {
		return
	}
	c.active = active

	if active {
		c.stopAutoPlay()
		c.armTrailer()
		c.logger.Debug().Str(utils.FieldEvent, "carousel.activated").Int(utils.FieldIndex, c.index).Msg("carousel activated")
	} else {
		c.cancel(&c.trailerTimer)
		c.endSession("deactivated")
		c.startAutoPlay()
		c.logger.Debug().Str(utils.FieldEvent, "carousel.deactivated").Int(utils.FieldIndex, c.index).Msg("carousel deactivated")
	}
	c.notify()
}
