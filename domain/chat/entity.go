package chat

import "time"

// Conversation is a direct-message thread between users.
type Conversation struct {
	ID         int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `gorm:"index" json:"modified_at"`
}

// TableName returns the table name for the Conversation entity.
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationUser links a user to a conversation they participate in.
type ConversationUser struct {
	ConversationID int64 `gorm:"primaryKey;autoIncrement:false" json:"conversation_id"`
	UserID         int64 `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
}

// TableName returns the table name for the ConversationUser entity.
func (ConversationUser) TableName() string {
	return "conversation_users"
}

// ConversationMessage is a single persisted chat message.
type ConversationMessage struct {
	ID             int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID int64  `gorm:"index;not null" json:"conversation_id"`
	Body           string `gorm:"not null;type:text" json:"body"`
	SentToID       int64  `gorm:"index;not null" json:"sent_to_id"`
	CreatedByID    int64  `gorm:"index;not null" json:"created_by_id"`
	IsRead         bool   `gorm:"not null;default:false" json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the table name for the ConversationMessage entity.
func (ConversationMessage) TableName() string {
	return "conversation_messages"
}
