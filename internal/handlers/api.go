package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"marquee/internal/core"
	"marquee/internal/models"
	"marquee/internal/utils"
)

type APIHandler struct {
	manager  *core.Manager
	logger   *utils.Logger
	upgrader websocket.Upgrader
}

// A helper function to respond with JSON
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to respond with a JSON error
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}

func NewAPIHandler(manager *core.Manager, logger *utils.Logger) *APIHandler {
	return &APIHandler{
		manager: manager,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Get every configured row with its current items
func (h *APIHandler) GetRows(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.Catalog().Rows())
}

// Get a single row
func (h *APIHandler) GetRow(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["row"]
	row, ok := h.manager.Catalog().Row(name)
	if !ok {
		respondError(w, http.StatusNotFound, "Row not found")
		return
	}
	respondJSON(w, http.StatusOK, row)
}

// Playable clips for one title, in audio-option order, plus the clip the
// carousel would pick
func (h *APIHandler) GetVideos(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, err := models.ParseMediaKind(vars["kind"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid media kind")
		return
	}
	id, err := strconv.Atoi(vars["id"])
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid media ID")
		return
	}

	res := h.manager.ResolveTrailer(r.Context(), kind, id)
	h.logger.Debug().
		Str(utils.FieldEvent, "videos.resolved").
		Int(utils.FieldItemID, id).
		Int("options", len(res.Options)).
		Bool("resolved", res.Clip != nil).
		Msg("trailer lookup")
	respondJSON(w, http.StatusOK, res)
}

// Trending titles straight from the metadata provider
func (h *APIHandler) GetTrending(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	switch kind {
	case "movie", "tv", "all":
	default:
		respondError(w, http.StatusBadRequest, "Kind must be movie, tv or all")
		return
	}

	window := r.URL.Query().Get("window")
	if window == "" {
		window = "week"
	}
	if window != "day" && window != "week" {
		respondError(w, http.StatusBadRequest, "Window must be day or week")
		return
	}

	respondJSON(w, http.StatusOK, h.manager.Trending(r.Context(), kind, window))
}

// Current state of one live carousel session
func (h *APIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.manager.Session(mux.Vars(r)["id"])
	if !ok {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	snap, err := sess.Snapshot()
	if err != nil {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":    sess.ID,
		"state": snap,
	})
}

func (h *APIHandler) GetSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := h.manager.GetSystemStatus()
	respondJSON(w, http.StatusOK, status)
}
