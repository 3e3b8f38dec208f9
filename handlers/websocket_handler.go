package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/services"
)

type WebSocketHandler struct {
	hub                *brackets.Hub
	competitionService services.CompetitionService
	upgrader           websocket.Upgrader
	logger             *slog.Logger
}

// NewWebSocketHandler accepts any origin when allowedOrigins is empty.
func NewWebSocketHandler(hub *brackets.Hub, cs services.CompetitionService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:                hub,
		competitionService: cs,
		logger:             logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin] || allowed["*"]
			},
		},
	}
}

// ServeWs subscribes the caller to /ws/competitions/{competitionID}. The first frame
// is the competition's current state; later frames are lifecycle events.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	competition, err := h.competitionService.Get(r.Context(), competitionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.Warn("ws upgrade failed", slog.Int("competition_id", competitionID), slog.Any("error", err))
		return
	}

	room := brackets.RoomForCompetition(competitionID)
	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: room,
	}

	snapshot, err := json.Marshal(brackets.WebSocketMessage{
		Type:    brackets.EventCompetitionUpdated,
		Payload: competition,
		RoomID:  room,
	})
	if err == nil {
		client.Send <- snapshot
	}

	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("ws client subscribed", slog.String("room", room))
}
