package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/example/chat-relay/domain/chat"
	"github.com/example/chat-relay/modules/broadcast"
)

// ErrSessionClosed is returned by Send once the session has terminated.
var ErrSessionClosed = errors.New("session closed")

// State is the connection session lifecycle state.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

// Identity is the resolved peer identity. The zero value is anonymous.
type Identity struct {
	UserID        int64
	Name          string
	Authenticated bool
}

// Conn is the write side of the underlying transport.
type Conn interface {
	WriteText(data []byte) error
}

// Gateway is the persistence collaborator for chat messages.
type Gateway interface {
	CreateMessage(ctx context.Context, conversationID int64, body string, senderID int64, senderName string, recipientID int64) (*chat.ConversationMessage, error)
	MarkRead(ctx context.Context, conversationID, recipientID int64) (int64, error)
}

// Session is the per-connection state machine. It joins its room channel on
// Open (plus the user's inbox channel when authenticated), dispatches inbound
// events in arrival order, and unwinds every membership exactly once on
// Close.
type Session struct {
	id       string
	conn     Conn
	identity Identity
	registry *broadcast.Registry
	router   *broadcast.Router
	gateway  Gateway

	roomChannel  string
	inboxChannel string // empty for anonymous sessions

	mu        sync.Mutex
	state     State
	closeOnce sync.Once
	writeMu   sync.Mutex
}

// NewSession creates a session in the Connecting state for a room. The inbox
// channel is bound only when identity is authenticated.
func NewSession(id string, conn Conn, identity Identity, roomName string, registry *broadcast.Registry, router *broadcast.Router, gateway Gateway) *Session {
	s := &Session{
		id:          id,
		conn:        conn,
		identity:    identity,
		registry:    registry,
		router:      router,
		gateway:     gateway,
		roomChannel: broadcast.RoomChannel(roomName),
		state:       StateConnecting,
	}
	if identity.Authenticated {
		s.inboxChannel = broadcast.InboxChannel(identity.UserID)
	}
	return s
}

// ID returns the opaque connection identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open transitions Connecting -> Open, registering the session with its
// channels. Opening a session twice or after Close is a no-op.
func (s *Session) Open() {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateOpen
	s.mu.Unlock()

	s.registry.Join(s.roomChannel, s)
	if s.inboxChannel != "" {
		s.registry.Join(s.inboxChannel, s)
	}
}

// Close transitions to the terminal Closed state and leaves every channel the
// session may have joined. Safe to call more than once and safe after a
// partial join: Leave is idempotent on both sides.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		s.registry.Leave(s.roomChannel, s)
		if s.inboxChannel != "" {
			s.registry.Leave(s.inboxChannel, s)
		}
	})
}

// Send delivers a raw frame to the peer. It implements broadcast.Subscriber;
// a transport failure or a closed session reports an error so the registry
// drops the membership lazily. Broadcasts arrive on other connections'
// goroutines, so writes are serialized here.
func (s *Session) Send(data []byte) error {
	if s.State() != StateOpen {
		return ErrSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteText(data)
}

// HandleInbound processes one inbound frame. Called from the connection's
// read loop, so frames of a single session are handled strictly in arrival
// order. Malformed and unknown envelopes are dropped without closing the
// session.
func (s *Session) HandleInbound(ctx context.Context, frame []byte) {
	if s.State() != StateOpen {
		return
	}

	env, err := DecodeEnvelope(frame)
	if err != nil {
		log.Printf("[relay] Session %s dropped frame: %v", s.id, err)
		return
	}

	switch env.Kind {
	case KindChatMessage:
		s.handleChatMessage(ctx, env.ChatMessage)
	case KindTyping:
		s.handleTyping(env.Typing)
	case KindMarkRead:
		s.handleMarkRead(ctx, env.MarkRead)
	case KindUnknown:
		log.Printf("[relay] Session %s dropped frame: unknown event kind", s.id)
	}
}

// handleChatMessage persists the message, then fans it out to the room and to
// the recipient's inbox. Persist-before-broadcast: a failed write drops the
// fan-out so peers never observe a message that was not stored.
func (s *Session) handleChatMessage(ctx context.Context, p *ChatMessagePayload) {
	if _, err := s.gateway.CreateMessage(ctx, p.ConversationID, p.Body, s.identity.UserID, p.Name, p.SentToID); err != nil {
		log.Printf("[relay] Session %s failed to persist message in conversation %d: %v", s.id, p.ConversationID, err)
		return
	}

	s.router.Publish(s.roomChannel, ChatMessageOut{
		Event: EventChatMessage,
		Body:  p.Body,
		Name:  p.Name,
	})

	s.router.Publish(broadcast.InboxChannel(p.SentToID), NotificationOut{
		Event:    EventNewMessageNotification,
		Message:  fmt.Sprintf("New message from %s: %s", p.Name, p.Body),
		FromUser: p.Name,
	})
}

func (s *Session) handleTyping(p *TypingPayload) {
	s.router.Publish(s.roomChannel, TypingOut{
		Event: EventTyping,
		Name:  p.Name,
	})
}

// handleMarkRead flips the caller's unread messages in the conversation and
// announces the receipt to the room. Anonymous sessions cannot mark anything
// read; the event is a client error and a no-op.
func (s *Session) handleMarkRead(ctx context.Context, p *MarkReadPayload) {
	if !s.identity.Authenticated {
		log.Printf("[relay] Session %s dropped mark_read: not authenticated", s.id)
		return
	}

	if _, err := s.gateway.MarkRead(ctx, p.ConversationID, s.identity.UserID); err != nil {
		log.Printf("[relay] Session %s failed to mark conversation %d read: %v", s.id, p.ConversationID, err)
		return
	}

	s.router.Publish(s.roomChannel, MarkedReadOut{
		Event:  EventMessagesMarkedRead,
		UserID: s.identity.UserID,
	})
}
