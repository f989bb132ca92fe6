// Package httpapi exposes the conversation workflow over HTTP and WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/deskmind/orchestrator/internal/db"
	"github.com/deskmind/orchestrator/internal/workflow"
)

// TurnRunner is the engine surface the handlers need.
type TurnRunner interface {
	RunTurn(ctx context.Context, userID, message, sessionID string) workflow.TurnResult
}

// Archiver records conversation activity out of band. May be nil.
type Archiver interface {
	RecordMessage(sessionID, userID, role, content string)
	RecordTurn(rec db.TurnRecord)
}

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatHandler serves synchronous chat turns.
type ChatHandler struct {
	engine  TurnRunner
	archive Archiver
	logger  *zap.Logger
}

// NewChatHandler constructs the handler. archive may be nil.
func NewChatHandler(engine TurnRunner, archive Archiver, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, archive: archive, logger: logger}
}

// RegisterRoutes registers chat endpoints on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat", h.handleChat)
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	start := time.Now()
	result := h.engine.RunTurn(r.Context(), req.UserID, req.Message, req.SessionID)
	h.record(req, result, time.Since(start))

	writeJSON(w, http.StatusOK, result)
}

func (h *ChatHandler) record(req ChatRequest, result workflow.TurnResult, elapsed time.Duration) {
	if h.archive == nil {
		return
	}
	h.archive.RecordMessage(result.SessionID, req.UserID, "user", req.Message)
	h.archive.RecordMessage(result.SessionID, req.UserID, "assistant", result.Response)

	finalStage := string(workflow.StageDone)
	if result.Error != "" {
		finalStage = "failed"
	}
	h.archive.RecordTurn(db.TurnRecord{
		SessionID:  result.SessionID,
		UserID:     req.UserID,
		Utterance:  req.Message,
		Response:   result.Response,
		FinalStage: finalStage,
		NeedsHuman: result.NeedsHuman,
		Error:      result.Error,
		DurationMS: elapsed.Milliseconds(),
	})
}

// writeJSON writes a JSON response with status and content-type.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
