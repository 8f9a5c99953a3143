package messaging

import (
	"context"
	"log"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/example/chat-relay/events"
	"github.com/go-monolith/mono"
)

// ConversationDetail is a conversation with its members and messages.
type ConversationDetail struct {
	Conversation domain.Conversation          `json:"conversation"`
	MemberIDs    []int64                      `json:"member_ids"`
	Messages     []domain.ConversationMessage `json:"messages"`
}

// Service is the persistence gateway for conversations and messages. Writes
// that succeed are announced on the event bus; publishing is best effort and
// never fails the write.
type Service struct {
	repo *Repository
	bus  mono.EventBus
}

// NewService creates a new messaging service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// SetEventBus attaches the application event bus.
func (s *Service) SetEventBus(bus mono.EventBus) {
	s.bus = bus
}

// CreateMessage persists an unread message and emits MessageCreated.
func (s *Service) CreateMessage(_ context.Context, conversationID int64, body string, senderID int64, senderName string, recipientID int64) (*domain.ConversationMessage, error) {
	msg, err := s.repo.CreateMessage(conversationID, body, senderID, recipientID)
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		event := events.MessageCreatedEvent{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       senderID,
			SenderName:     senderName,
			RecipientID:    recipientID,
			Body:           body,
			CreatedAt:      msg.CreatedAt,
		}
		if err := events.MessageCreatedV1.Publish(s.bus, event, nil); err != nil {
			log.Printf("[messaging] Failed to publish MessageCreated event: %v", err)
		}
	}

	return msg, nil
}

// MarkRead flips the recipient's unread messages in the conversation and
// emits MessagesRead when anything changed.
func (s *Service) MarkRead(_ context.Context, conversationID, recipientID int64) (int64, error) {
	count, err := s.repo.MarkRead(conversationID, recipientID)
	if err != nil {
		return 0, err
	}

	if count > 0 && s.bus != nil {
		event := events.MessagesReadEvent{
			ConversationID: conversationID,
			UserID:         recipientID,
			Count:          count,
		}
		if err := events.MessagesReadV1.Publish(s.bus, event, nil); err != nil {
			log.Printf("[messaging] Failed to publish MessagesRead event: %v", err)
		}
	}

	return count, nil
}

// GetConversation returns a conversation with members and messages, provided
// the requesting user participates in it.
func (s *Service) GetConversation(_ context.Context, conversationID, userID int64) (*ConversationDetail, error) {
	member, err := s.repo.IsMember(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrConversationNotFound
	}

	conv, err := s.repo.FindConversation(conversationID)
	if err != nil {
		return nil, err
	}
	memberIDs, err := s.repo.MemberIDs(conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.Messages(conversationID)
	if err != nil {
		return nil, err
	}

	return &ConversationDetail{
		Conversation: *conv,
		MemberIDs:    memberIDs,
		Messages:     msgs,
	}, nil
}

// ListConversations returns the user's conversations, newest first.
func (s *Service) ListConversations(_ context.Context, userID int64) ([]domain.Conversation, error) {
	return s.repo.ListForUser(userID)
}

// StartConversation finds or creates the direct conversation between two
// users.
func (s *Service) StartConversation(_ context.Context, userID, targetUserID int64) (*domain.Conversation, error) {
	return s.repo.FindOrCreateForUsers(userID, targetUserID)
}
