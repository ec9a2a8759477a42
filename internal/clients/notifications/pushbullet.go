package notifications

import (
	"fmt"

	"github.com/xconstruct/go-pushbullet"

	"marquee/internal/utils"
)

// PushbulletClient implements the Notifier interface for Pushbullet.
type PushbulletClient struct {
	pb     *pushbullet.Client
	logger *utils.Logger
}

// NewPushbulletClient creates a new client for sending Pushbullet notifications.
func NewPushbulletClient(apiKey string, logger *utils.Logger) *PushbulletClient {
	return &PushbulletClient{
		pb:     pushbullet.New(apiKey),
		logger: logger.Component("pushbullet"),
	}
}

// sendPush sends a note to all of the user's devices.
func (c *PushbulletClient) sendPush(title, body string) {
	// An empty device iden means all devices.
	if err := c.pb.PushNote("", title, body); err != nil {
		c.logger.Error().Err(err).Str("title", title).Msg("error sending pushbullet notification")
	}
}

// NotifyRowEmpty fires when a row refresh returns nothing.
func (c *PushbulletClient) NotifyRowEmpty(row string, kept int) {
	title := fmt.Sprintf("Marquee: row %q refresh failed", row)
	body := fmt.Sprintf("The metadata provider returned no titles. Still serving %d cached titles.", kept)
	c.sendPush(title, body)
}

// NotifyRowRecovered fires on the first good refresh after a failure.
func (c *PushbulletClient) NotifyRowRecovered(row string, count int) {
	title := fmt.Sprintf("Marquee: row %q recovered", row)
	body := fmt.Sprintf("Refreshed with %d titles.", count)
	c.sendPush(title, body)
}

// Test verifies the API key is valid by fetching user info.
func (c *PushbulletClient) Test() error {
	if _, err := c.pb.Me(); err != nil {
		return fmt.Errorf("pushbullet authentication failed: %w", err)
	}
	return nil
}
