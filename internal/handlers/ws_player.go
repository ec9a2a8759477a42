package handlers

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"marquee/internal/carousel"
	"marquee/internal/utils"
)

var errPlayerGone = errors.New("remote player destroyed")

// remoteProvider creates players that live in the browser on the other end
// of a websocket. Commands go out as messages; events come back through
// dispatch.
type remoteProvider struct {
	conn   *wsConn
	logger *utils.Logger

	mu      sync.Mutex
	players map[string]*remotePlayer
}

func newRemoteProvider(conn *wsConn, logger *utils.Logger) *remoteProvider {
	return &remoteProvider{
		conn:    conn,
		logger:  logger,
		players: make(map[string]*remotePlayer),
	}
}

func (p *remoteProvider) Instantiate(target, clipKey string, opts carousel.PlayerOptions, events carousel.PlayerEvents) (carousel.Player, error) {
	rp := &remotePlayer{
		id:       uuid.NewString(),
		provider: p,
		events:   events,
		state:    carousel.StateUnstarted,
	}

	p.mu.Lock()
	p.players[rp.id] = rp
	p.mu.Unlock()

	err := p.conn.send(serverMessage{
		Type:     msgPlayerCreate,
		PlayerID: rp.id,
		Target:   target,
		Key:      clipKey,
		Options:  &opts,
	})
	if err != nil {
		p.forget(rp.id)
		return nil, err
	}
	return rp, nil
}

func (p *remoteProvider) lookup(id string) (*remotePlayer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rp, ok := p.players[id]
	return rp, ok
}

func (p *remoteProvider) forget(id string) {
	p.mu.Lock()
	delete(p.players, id)
	p.mu.Unlock()
}

// dispatch routes one player event from the browser. Events for players that
// were already destroyed are dropped.
func (p *remoteProvider) dispatch(msg clientMessage) {
	rp, ok := p.lookup(msg.PlayerID)
	if !ok {
		p.logger.Debug().Str("player_id", msg.PlayerID).Str("type", msg.Type).Msg("event for unknown player dropped")
		return
	}

	switch msg.Type {
	case msgPlayerReady:
		qualities := make([]carousel.Quality, 0, len(msg.Qualities))
		for _, q := range msg.Qualities {
			qualities = append(qualities, carousel.Quality(q))
		}
		rp.mu.Lock()
		rp.qualities = qualities
		rp.mu.Unlock()
		if rp.events.OnReady != nil {
			rp.events.OnReady(rp)
		}
	case msgPlayerState:
		st := carousel.PlayerState(msg.State)
		rp.mu.Lock()
		rp.state = st
		rp.mu.Unlock()
		if rp.events.OnStateChange != nil {
			rp.events.OnStateChange(st)
		}
	case msgPlayerQuality:
		if rp.events.OnQualityChange != nil {
			rp.events.OnQualityChange(carousel.Quality(msg.Quality))
		}
	case msgPlayerError:
		if rp.events.OnError != nil {
			rp.events.OnError(msg.Code)
		}
	case msgPlayerProgress:
		rp.mu.Lock()
		rp.position = msg.Position
		rp.state = carousel.PlayerState(msg.State)
		rp.mu.Unlock()
	}
}

// remotePlayer caches the last position, state and qualities the browser
// reported; reads never block on the connection.
type remotePlayer struct {
	id       string
	provider *remoteProvider
	events   carousel.PlayerEvents

	mu        sync.Mutex
	qualities []carousel.Quality
	position  float64
	state     carousel.PlayerState
	destroyed bool
}

func (rp *remotePlayer) command(typ string, quality carousel.Quality) error {
	rp.mu.Lock()
	gone := rp.destroyed
	rp.mu.Unlock()
	if gone {
		return errPlayerGone
	}
	return rp.provider.conn.send(serverMessage{Type: typ, PlayerID: rp.id, Quality: string(quality)})
}

func (rp *remotePlayer) Play() error   { return rp.command(msgPlayerPlay, "") }
func (rp *remotePlayer) Mute() error   { return rp.command(msgPlayerMute, "") }
func (rp *remotePlayer) Unmute() error { return rp.command(msgPlayerUnmute, "") }

func (rp *remotePlayer) SetQuality(q carousel.Quality) error {
	return rp.command(msgPlayerQuality, q)
}

func (rp *remotePlayer) AvailableQualities() []carousel.Quality {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return append([]carousel.Quality(nil), rp.qualities...)
}

func (rp *remotePlayer) CurrentPosition() float64 {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.position
}

func (rp *remotePlayer) State() carousel.PlayerState {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.state
}

// Destroy tells the browser to drop the instance. Only the first call sends.
func (rp *remotePlayer) Destroy() error {
	rp.mu.Lock()
	if rp.destroyed {
		rp.mu.Unlock()
		return nil
	}
	rp.destroyed = true
	rp.mu.Unlock()

	rp.provider.forget(rp.id)
	return rp.provider.conn.send(serverMessage{Type: msgPlayerDestroy, PlayerID: rp.id})
}
