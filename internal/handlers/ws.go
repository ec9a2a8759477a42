package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"marquee/internal/carousel"
	"marquee/internal/core"
	"marquee/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8 << 10
	sendQueueSize  = 64
)

// Client to server.
const (
	msgLibraryReady   = "library_ready"
	msgPointerEnter   = "pointer_enter"
	msgPointerLeave   = "pointer_leave"
	msgFocusIn        = "focus_in"
	msgFocusOut       = "focus_out"
	msgNext           = "next"
	msgPrevious       = "previous"
	msgGoTo           = "goto"
	msgToggleMute     = "toggle_mute"
	msgSelectAudio    = "select_audio"
	msgPlayerReady    = "player_ready"
	msgPlayerState    = "player_state"
	msgPlayerError    = "player_error"
	msgPlayerProgress = "player_progress"
)

// Server to client. player_quality travels both ways: a report from the
// browser, a request from the server.
const (
	msgSession       = "session"
	msgState         = "state"
	msgPreload       = "preload"
	msgLoadLibrary   = "load_library"
	msgPlayerCreate  = "player_create"
	msgPlayerDestroy = "player_destroy"
	msgPlayerPlay    = "player_play"
	msgPlayerMute    = "player_mute"
	msgPlayerUnmute  = "player_unmute"
	msgPlayerQuality = "player_quality"
	msgError         = "error"
)

var (
	errConnClosed   = errors.New("websocket closed")
	errSlowConsumer = errors.New("websocket client is not reading")
)

type clientMessage struct {
	Type      string   `json:"type"`
	Inside    bool     `json:"inside,omitempty"`
	Index     int      `json:"index,omitempty"`
	PlayerID  string   `json:"player_id,omitempty"`
	Qualities []string `json:"qualities,omitempty"`
	State     int      `json:"state,omitempty"`
	Quality   string   `json:"quality,omitempty"`
	Code      int      `json:"code,omitempty"`
	Position  float64  `json:"position,omitempty"`
}

type serverMessage struct {
	Type      string                  `json:"type"`
	SessionID string                  `json:"session_id,omitempty"`
	State     *carousel.Snapshot      `json:"state,omitempty"`
	Path      string                  `json:"path,omitempty"`
	PlayerID  string                  `json:"player_id,omitempty"`
	Target    string                  `json:"target,omitempty"`
	Key       string                  `json:"key,omitempty"`
	Options   *carousel.PlayerOptions `json:"options,omitempty"`
	Quality   string                  `json:"quality,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// wsConn queues outbound messages for a single writer goroutine; gorilla
// connections allow one concurrent writer. Sends never block: a client that
// lets the queue fill up is disconnected.
type wsConn struct {
	ws     *websocket.Conn
	logger *utils.Logger
	out    chan outbound
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

type outbound struct {
	msg        serverMessage
	closeFrame []byte
}

func newWSConn(ws *websocket.Conn, logger *utils.Logger) *wsConn {
	c := &wsConn{
		ws:     ws,
		logger: logger,
		out:    make(chan outbound, sendQueueSize),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *wsConn) writeLoop() {
	defer close(c.done)
	for m := range c.out {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		var err error
		if m.closeFrame != nil {
			err = c.ws.WriteMessage(websocket.CloseMessage, m.closeFrame)
		} else {
			err = c.ws.WriteJSON(m.msg)
		}
		if err != nil {
			// Unblocks the read loop; queued messages fail fast from here on.
			_ = c.ws.Close()
		}
	}
}

func (c *wsConn) enqueue(m outbound, last bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.out <- m:
	default:
		c.closed = true
		close(c.out)
		_ = c.ws.Close()
		c.logger.Warn().Int("queued", sendQueueSize).Msg("websocket send queue full, dropping client")
		return errSlowConsumer
	}
	if last {
		c.closed = true
		close(c.out)
	}
	return nil
}

func (c *wsConn) send(msg serverMessage) error {
	return c.enqueue(outbound{msg: msg}, false)
}

// close queues a close frame; later sends fail with errConnClosed.
func (c *wsConn) close(code int, reason string) {
	_ = c.enqueue(outbound{closeFrame: websocket.FormatCloseMessage(code, reason)}, true)
}

// finish stops accepting messages and waits for the writer to flush.
func (c *wsConn) finish() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
	c.mu.Unlock()
	<-c.done
}

// CarouselSocket runs one carousel session for the lifetime of the websocket.
// The browser hosts the player; this side owns every decision.
func (h *APIHandler) CarouselSocket(w http.ResponseWriter, r *http.Request) {
	row := mux.Vars(r)["row"]
	if _, ok := h.manager.Catalog().Row(row); !ok {
		respondError(w, http.StatusNotFound, "Row not found")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str(utils.FieldRow, row).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()
	ws.SetReadLimit(maxMessageSize)
	wsConnections.Inc()
	defer wsConnections.Dec()

	logger := h.logger.WithStr(utils.FieldRow, row)
	conn := newWSConn(ws, logger)
	defer conn.finish()
	provider := newRemoteProvider(conn, logger)
	loader := carousel.NewLoader(func() {
		if err := conn.send(serverMessage{Type: msgLoadLibrary}); err != nil {
			logger.Debug().Err(err).Msg("load_library not delivered")
		}
	})

	sess, err := h.manager.OpenSession(row, core.SessionBinding{
		Provider: provider,
		Loader:   loader,
		OnChange: func(s carousel.Snapshot) {
			_ = conn.send(serverMessage{Type: msgState, State: &s})
		},
		OnPreload: func(path string) {
			_ = conn.send(serverMessage{Type: msgPreload, Path: path})
		},
	})
	switch {
	case errors.Is(err, carousel.ErrNoItems):
		_ = conn.send(serverMessage{Type: msgState, State: &carousel.Snapshot{Phase: carousel.PhaseIdle, AudioIndex: -1}})
		conn.close(websocket.CloseNormalClosure, "no items")
		return
	case err != nil:
		logger.Error().Err(err).Msg("failed to open carousel session")
		conn.close(websocket.CloseInternalServerErr, "session unavailable")
		return
	}
	defer func() {
		if err := h.manager.CloseSession(sess.ID); err != nil && !errors.Is(err, core.ErrSessionNotFound) {
			logger.Warn().Err(err).Msg("failed to close carousel session")
		}
	}()
	_ = conn.send(serverMessage{Type: msgSession, SessionID: sess.ID})

	h.readLoop(conn, sess, provider, loader, logger.WithStr(utils.FieldSessionID, sess.ID))
}

func (h *APIHandler) readLoop(conn *wsConn, sess *carousel.Session, provider *remoteProvider, loader *carousel.Loader, logger *utils.Logger) {
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = conn.send(serverMessage{Type: msgError, Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case msgLibraryReady:
			loader.MarkReady()
		case msgPointerEnter:
			sess.PointerEnter()
		case msgPointerLeave:
			sess.PointerLeave()
		case msgFocusIn:
			sess.FocusIn()
		case msgFocusOut:
			sess.FocusOut(msg.Inside)
		case msgNext:
			sess.Next()
		case msgPrevious:
			sess.Previous()
		case msgToggleMute:
			sess.ToggleMute()
		case msgGoTo:
			if err := sess.GoTo(msg.Index); err != nil {
				_ = conn.send(serverMessage{Type: msgError, Error: err.Error()})
			}
		case msgSelectAudio:
			if err := sess.SelectAudio(msg.Index); err != nil {
				_ = conn.send(serverMessage{Type: msgError, Error: err.Error()})
			}
		case msgPlayerReady, msgPlayerState, msgPlayerQuality, msgPlayerError, msgPlayerProgress:
			provider.dispatch(msg)
		default:
			logger.Debug().Str("type", msg.Type).Msg("unknown message type")
			_ = conn.send(serverMessage{Type: msgError, Error: "unknown message type"})
		}
	}
}
