package notification

import "time"

// TypeMessage is the notification type for a received chat message.
const TypeMessage = "message"

// Notification is a persisted per-user notification.
type Notification struct {
	ID             int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	RecipientID    int64  `gorm:"index;not null" json:"recipient_id"`
	SenderID       int64  `gorm:"index;not null" json:"sender_id"`
	SenderName     string `gorm:"not null;type:text" json:"sender_name"`
	Type           string `gorm:"not null;type:text" json:"type"`
	ConversationID int64  `gorm:"index" json:"conversation_id,omitempty"`
	Message        string `gorm:"not null;type:text" json:"message"`
	IsRead         bool   `gorm:"not null;default:false" json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the table name for the Notification entity.
func (Notification) TableName() string {
	return "notifications"
}
