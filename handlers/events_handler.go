package handlers

import (
	"net/http"
	"strings"

	"friendsAPI/internal/apperr"
	"friendsAPI/middleware"
	"friendsAPI/services"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type EventsHandler struct {
	hub      *services.EventHub
	verifier middleware.TokenVerifier
	logger   *zap.Logger
}

func NewEventsHandler(hub *services.EventHub, verifier middleware.TokenVerifier, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		hub:      hub,
		verifier: verifier,
		logger:   logger,
	}
}

// GET /api/v1/ws/events - live friend-request events for the caller.
// Browsers cannot set headers on a websocket handshake, so the access token
// may also be passed as ?token=.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		respondWithError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "Authentication credentials were not provided.")
		return
	}

	userID, err := h.verifier.VerifyAccessToken(token)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "Given token not valid for any token type")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("could not upgrade connection", zap.Error(err))
		return
	}

	client := services.NewEventClient(h.hub, conn, userID)
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump()
}
