package handlers

import (
	"net/http"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
)

// ReplyHandler builds the final reply of an agent turn.
type ReplyHandler struct {
	logger  *observability.Logger
	service *assistant.Service
}

// NewReplyHandler creates a reply handler.
func NewReplyHandler(logger *observability.Logger, service *assistant.Service) *ReplyHandler {
	return &ReplyHandler{logger: logger, service: service}
}

// FallbackRequestDTO carries a turn's transcript and tool outputs. Either
// may be empty.
type FallbackRequestDTO struct {
	Messages    []assistant.Message `json:"messages,omitempty"`
	ToolOutputs []string            `json:"toolOutputs,omitempty"`
}

// Fallback handles POST /replies/fallback.
func (h *ReplyHandler) Fallback(w http.ResponseWriter, r *http.Request) {
	var req FallbackRequestDTO
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	text := h.service.ExtractReply(req.Messages, req.ToolOutputs)
	writeJSON(w, http.StatusOK, TextResponse{Text: text, OK: true})
}
