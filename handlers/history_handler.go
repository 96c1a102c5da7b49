package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/minichat-gateway/models"
	"github.com/upb/minichat-gateway/services/history"
	"github.com/upb/minichat-gateway/utils"
	"go.uber.org/zap"
)

// HistoryService is the chat history surface used by HistoryHandler
type HistoryService interface {
	Save(ctx context.Context, userID uuid.UUID, req *history.SaveRequest) (*models.ChatLog, error)
	List(ctx context.Context, userID uuid.UUID, conversationID string, page history.Pagination) (*history.LogPage, error)
	Conversations(ctx context.Context, userID uuid.UUID, page history.Pagination) (*history.ConversationPage, error)
	Delete(ctx context.Context, userID, logID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID, conversationID string) (int64, error)
	SetLiked(ctx context.Context, userID, logID uuid.UUID, liked bool) error
}

// SaveChatRequest is the body of POST /api/chat/save
type SaveChatRequest struct {
	UserMessage    string `json:"user_message" validate:"required,max=4000"`
	BotReply       string `json:"bot_reply" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"max=128"`
}

// LikeRequest is the body of POST /api/chat/like
type LikeRequest struct {
	MessageID string `json:"message_id" validate:"required"`
	Liked     *bool  `json:"liked" validate:"required"`
}

// HistoryHandler handles chat history requests
type HistoryHandler struct {
	history HistoryService
	logger  *zap.Logger
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(history HistoryService, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

// HandleSave handles POST /api/chat/save
func (h *HistoryHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrReject(w, r, h.logger)
	if !ok {
		return
	}

	var req SaveChatRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	entry, err := h.history.Save(r.Context(), principal.SubjectID, &history.SaveRequest{
		UserMessage:    req.UserMessage,
		BotReply:       req.BotReply,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	if err := utils.WriteCreated(w, entry, "chat saved"); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleList handles GET /api/chat/history
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrReject(w, r, h.logger)
	if !ok {
		return
	}

	page := history.NewPagination(utils.PageQuery(r))
	result, err := h.history.List(r.Context(), principal.SubjectID, r.URL.Query().Get("conversation_id"), page)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeOK(w, result, "", h.logger)
}

// HandleConversations handles GET /api/chat/conversations
func (h *HistoryHandler) HandleConversations(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrReject(w, r, h.logger)
	if !ok {
		return
	}

	page := history.NewPagination(utils.PageQuery(r))
	result, err := h.history.Conversations(r.Context(), principal.SubjectID, page)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeOK(w, result, "", h.logger)
}

// HandleDelete handles DELETE /api/chat/history/{logId}
func (h *HistoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrReject(w, r, h.logger)
	if !ok {
		return
	}

	logID, err := utils.ParseUUID(chi.URLParam(r, "logId"), "log_id")
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	if err := h.history.Delete(r.Context(), principal.SubjectID, logID); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeOK(w, map[string]string{"id": logID.String()}, "chat log deleted", h.logger)
}

// HandleClear handles DELETE /api/chat/history, optionally scoped by ?conversation_id=
func (h *HistoryHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrReject(w, r, h.logger)
	if !ok {
		return
	}

	deleted, err := h.history.Clear(r.Context(), principal.SubjectID, r.URL.Query().Get("conversation_id"))
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeOK(w, map[string]int64{"deleted": deleted}, "chat history cleared", h.logger)
}

// HandleLike handles POST /api/chat/like
func (h *HistoryHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrReject(w, r, h.logger)
	if !ok {
		return
	}

	var req LikeRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	logID, err := utils.ParseUUID(req.MessageID, "message_id")
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	if err := h.history.SetLiked(r.Context(), principal.SubjectID, logID, *req.Liked); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeOK(w, map[string]interface{}{"message_id": logID, "liked": *req.Liked}, "", h.logger)
}
