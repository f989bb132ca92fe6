package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Dev-friendly, secure via proxy in prod
}

// RegisterWebSocket registers the /api/chat/ws endpoint: a persistent chat
// connection where each inbound frame is one turn and each outbound frame is
// the turn result.
func (h *ChatHandler) RegisterWebSocket(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat/ws", h.handleWS)
}

func (h *ChatHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous"
	}
	sessionID := r.URL.Query().Get("session_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Single reader and single writer on this goroutine; idle connections
	// are closed by the read deadline.
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))

	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Minute))

		if req.Message == "" {
			continue
		}
		if req.UserID == "" {
			req.UserID = userID
		}
		if req.SessionID == "" {
			req.SessionID = sessionID
		}

		start := time.Now()
		result := h.engine.RunTurn(r.Context(), req.UserID, req.Message, req.SessionID)
		h.record(req, result, time.Since(start))

		// Session continuity across frames on the same connection.
		sessionID = result.SessionID

		if err := conn.WriteJSON(result); err != nil {
			h.logger.Debug("WebSocket write failed", zap.Error(err))
			return
		}
	}
}
