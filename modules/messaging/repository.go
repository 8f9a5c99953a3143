package messaging

import (
	"errors"
	"fmt"
	"time"

	domain "github.com/example/chat-relay/domain/chat"
	"gorm.io/gorm"
)

var (
	// ErrConversationNotFound is returned when a conversation does not exist.
	ErrConversationNotFound = errors.New("conversation not found")
)

// Repository provides access to conversation and message storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new messaging repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateMessage stores a new unread message and bumps the conversation's
// modified timestamp.
func (r *Repository) CreateMessage(conversationID int64, body string, senderID, recipientID int64) (*domain.ConversationMessage, error) {
	var exists int64
	if err := r.db.Model(&domain.Conversation{}).Where("id = ?", conversationID).Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("failed to check conversation: %w", err)
	}
	if exists == 0 {
		return nil, ErrConversationNotFound
	}

	msg := &domain.ConversationMessage{
		ConversationID: conversationID,
		Body:           body,
		SentToID:       recipientID,
		CreatedByID:    senderID,
		IsRead:         false,
		CreatedAt:      time.Now(),
	}
	if err := r.db.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	if err := r.db.Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		Update("modified_at", msg.CreatedAt).Error; err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	return msg, nil
}

// MarkRead flips every unread message in the conversation addressed to the
// recipient. Messages addressed to other users and other conversations are
// untouched. Returns the number of rows affected.
func (r *Repository) MarkRead(conversationID, recipientID int64) (int64, error) {
	result := r.db.Model(&domain.ConversationMessage{}).
		Where("conversation_id = ? AND sent_to_id = ? AND is_read = ?", conversationID, recipientID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// FindConversation retrieves a conversation by ID.
func (r *Repository) FindConversation(id int64) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := r.db.First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	return &conv, nil
}

// MemberIDs returns the user ids participating in a conversation.
func (r *Repository) MemberIDs(conversationID int64) ([]int64, error) {
	var ids []int64
	if err := r.db.Model(&domain.ConversationUser{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return ids, nil
}

// IsMember reports whether the user participates in the conversation.
func (r *Repository) IsMember(conversationID, userID int64) (bool, error) {
	var count int64
	if err := r.db.Model(&domain.ConversationUser{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// Messages returns a conversation's messages in creation order.
func (r *Repository) Messages(conversationID int64) ([]domain.ConversationMessage, error) {
	var msgs []domain.ConversationMessage
	if err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// ListForUser returns the conversations the user participates in, most
// recently modified first.
func (r *Repository) ListForUser(userID int64) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	if err := r.db.
		Joins("JOIN conversation_users cu ON cu.conversation_id = conversations.id").
		Where("cu.user_id = ?", userID).
		Order("conversations.modified_at DESC").
		Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// FindOrCreateForUsers returns the existing two-member conversation between
// the users, creating it if none exists.
func (r *Repository) FindOrCreateForUsers(userA, userB int64) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.
		Joins("JOIN conversation_users a ON a.conversation_id = conversations.id AND a.user_id = ?", userA).
		Joins("JOIN conversation_users b ON b.conversation_id = conversations.id AND b.user_id = ?", userB).
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}

	now := time.Now()
	conv = domain.Conversation{CreatedAt: now, ModifiedAt: now}
	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		members := []domain.ConversationUser{
			{ConversationID: conv.ID, UserID: userA},
			{ConversationID: conv.ID, UserID: userB},
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}
