package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatLog is one persisted exchange between a user and the assistant
type ChatLog struct {
	ID             uuid.UUID `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	UserMessage    string    `json:"user_message" db:"user_message"`
	BotReply       string    `json:"bot_reply" db:"bot_reply"`
	ConversationID *string   `json:"conversation_id,omitempty" db:"conversation_id"`
	Liked          bool      `json:"liked" db:"liked"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the ChatLog model
func (ChatLog) TableName() string {
	return "chat_logs"
}

// NewChatLog creates a chat log entry. An empty conversationID is stored as NULL.
func NewChatLog(userID uuid.UUID, userMessage, botReply, conversationID string) *ChatLog {
	now := time.Now()
	log := &ChatLog{
		ID:          uuid.New(),
		UserID:      userID,
		UserMessage: userMessage,
		BotReply:    botReply,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if conversationID != "" {
		log.ConversationID = &conversationID
	}
	return log
}

// Conversation summarizes the chat logs sharing one upstream conversation id
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	FirstMessage   string    `json:"first_message"`
	MessageCount   int       `json:"message_count"`
	StartedAt      time.Time `json:"started_at"`
	LastMessageAt  time.Time `json:"last_message_at"`
}
