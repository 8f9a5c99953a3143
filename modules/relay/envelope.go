package relay

import (
	"encoding/json"
	"errors"
)

// Inbound event names on the wire.
const (
	EventChatMessage = "chat_message"
	EventTyping      = "typing"
	EventMarkRead    = "mark_read"
)

// Outbound event names on the wire.
const (
	EventNewMessageNotification = "new_message_notification"
	EventMessagesMarkedRead     = "messages_marked_read"
)

// Envelope decode errors.
var (
	ErrMalformedEnvelope = errors.New("malformed event envelope")
	ErrMissingField      = errors.New("event payload missing required field")
)

// Kind is the closed set of inbound event kinds.
type Kind int

const (
	KindUnknown Kind = iota
	KindChatMessage
	KindTyping
	KindMarkRead
)

// ChatMessagePayload carries an inbound chat message.
type ChatMessagePayload struct {
	ConversationID int64  `json:"conversation_id"`
	SentToID       int64  `json:"sent_to_id"`
	Name           string `json:"name"`
	Body           string `json:"body"`
}

// TypingPayload carries an inbound typing indicator.
type TypingPayload struct {
	Name string `json:"name"`
}

// MarkReadPayload carries an inbound read receipt.
type MarkReadPayload struct {
	ConversationID int64 `json:"conversation_id"`
}

// Envelope is an inbound event decoded into its tagged variant. Exactly the
// field matching Kind is set; KindUnknown carries no payload.
type Envelope struct {
	Kind        Kind
	ChatMessage *ChatMessagePayload
	Typing      *TypingPayload
	MarkRead    *MarkReadPayload
}

type rawEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a wire frame into an Envelope. Unparseable frames and
// payloads missing required fields return an error; an event name outside the
// known set decodes to KindUnknown without error.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(frame, &raw); err != nil {
		return Envelope{}, ErrMalformedEnvelope
	}

	switch raw.Event {
	case EventChatMessage:
		var p ChatMessagePayload
		if err := json.Unmarshal(raw.Data, &p); err != nil {
			return Envelope{}, ErrMalformedEnvelope
		}
		if p.ConversationID == 0 || p.SentToID == 0 || p.Name == "" || p.Body == "" {
			return Envelope{}, ErrMissingField
		}
		return Envelope{Kind: KindChatMessage, ChatMessage: &p}, nil

	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(raw.Data, &p); err != nil {
			return Envelope{}, ErrMalformedEnvelope
		}
		if p.Name == "" {
			return Envelope{}, ErrMissingField
		}
		return Envelope{Kind: KindTyping, Typing: &p}, nil

	case EventMarkRead:
		var p MarkReadPayload
		if err := json.Unmarshal(raw.Data, &p); err != nil {
			return Envelope{}, ErrMalformedEnvelope
		}
		if p.ConversationID == 0 {
			return Envelope{}, ErrMissingField
		}
		return Envelope{Kind: KindMarkRead, MarkRead: &p}, nil

	default:
		return Envelope{Kind: KindUnknown}, nil
	}
}

// ChatMessageOut is the room broadcast for a chat message.
type ChatMessageOut struct {
	Event string `json:"event"`
	Body  string `json:"body"`
	Name  string `json:"name"`
}

// TypingOut is the room broadcast for a typing indicator.
type TypingOut struct {
	Event string `json:"event"`
	Name  string `json:"name"`
}

// NotificationOut is the inbox broadcast for a newly received message.
type NotificationOut struct {
	Event    string `json:"event"`
	Message  string `json:"message"`
	FromUser string `json:"from_user"`
}

// MarkedReadOut is the room broadcast for a read receipt.
type MarkedReadOut struct {
	Event  string `json:"event"`
	UserID int64  `json:"user_id"`
}
