package notifications

import (
	"fmt"
	"time"

	domain "github.com/example/chat-relay/domain/notification"
	"gorm.io/gorm"
)

// Repository handles notification persistence using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new notification repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a notification.
func (r *Repository) Create(n *domain.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if err := r.db.Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListForRecipient returns the recipient's notifications, newest first.
func (r *Repository) ListForRecipient(recipientID int64, limit int) ([]domain.Notification, error) {
	var list []domain.Notification
	q := r.db.Where("recipient_id = ?", recipientID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

// UnreadCount returns how many unread notifications the recipient has.
func (r *Repository) UnreadCount(recipientID int64) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkConversationRead flips unread message notifications the recipient has
// for the conversation. Returns the number of rows changed.
func (r *Repository) MarkConversationRead(conversationID, recipientID int64) (int64, error) {
	res := r.db.Model(&domain.Notification{}).
		Where("conversation_id = ? AND recipient_id = ? AND type = ? AND is_read = ?",
			conversationID, recipientID, domain.TypeMessage, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}
