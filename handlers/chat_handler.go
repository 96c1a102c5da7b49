package handlers

import (
	"context"
	"net/http"

	"github.com/upb/minichat-gateway/middleware"
	"github.com/upb/minichat-gateway/services/chat"
	"github.com/upb/minichat-gateway/utils"
	"go.uber.org/zap"
)

// ChatService runs one quota-gated chat turn
type ChatService interface {
	Converse(ctx context.Context, req *chat.ConverseRequest) (*chat.ConverseResult, error)
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Message        string `json:"message" validate:"required,max=4000"`
	ConversationID string `json:"conversation_id" validate:"max=128"`
}

// ChatHandler handles chat requests
type ChatHandler struct {
	chat   ChatService
	logger *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chat ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: logger,
	}
}

// HandleChat handles POST /api/chat using the default provider
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	h.converse(w, r, "")
}

// HandleProviderChat returns a handler pinned to one provider, e.g. POST /api/chat/dify
func (h *ChatHandler) HandleProviderChat(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.converse(w, r, provider)
	}
}

func (h *ChatHandler) converse(w http.ResponseWriter, r *http.Request, provider string) {
	principal, ok := principalOrReject(w, r, h.logger)
	if !ok {
		return
	}

	var req ChatRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	result, err := h.chat.Converse(r.Context(), &chat.ConverseRequest{
		SubjectID:      principal.SubjectID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Provider:       provider,
		Meta:           middleware.RequestMeta(r),
	})
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeOK(w, result, "", h.logger)
}
