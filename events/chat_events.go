package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageCreatedEvent is emitted after a chat message is persisted.
type MessageCreatedEvent struct {
	MessageID      int64     `json:"message_id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	RecipientID    int64     `json:"recipient_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessagesReadEvent is emitted after a recipient marks a conversation read.
type MessagesReadEvent struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
	Count          int64 `json:"count"`
}

// Event definitions for the messaging domain.
var (
	MessageCreatedV1 = helper.EventDefinition[MessageCreatedEvent](
		"messaging",
		"MessageCreated",
		"v1",
	)

	MessagesReadV1 = helper.EventDefinition[MessagesReadEvent](
		"messaging",
		"MessagesRead",
		"v1",
	)
)
