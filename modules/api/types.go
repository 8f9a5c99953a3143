package api

import (
	"time"

	chatdomain "github.com/example/chat-relay/domain/chat"
	notifdomain "github.com/example/chat-relay/domain/notification"
)

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse represents an authentication token response.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

// UserResponse represents a user response.
type UserResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationResponse represents a conversation summary.
type ConversationResponse struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ConversationListResponse represents the user's conversations.
type ConversationListResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

// ConversationDetailResponse represents a conversation with its messages.
type ConversationDetailResponse struct {
	Conversation ConversationResponse             `json:"conversation"`
	MemberIDs    []int64                          `json:"member_ids"`
	Messages     []chatdomain.ConversationMessage `json:"messages"`
}

// NotificationListResponse represents the user's notification feed.
type NotificationListResponse struct {
	Notifications []notifdomain.Notification `json:"notifications"`
	UnreadCount   int64                      `json:"unread_count"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
