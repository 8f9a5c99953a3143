package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/chat-relay/domain/chat"
	"github.com/example/chat-relay/modules/broadcast"
)

// fakeConn records frames written to the transport.
type fakeConn struct {
	mu     sync.Mutex
	frames []string
}

func (c *fakeConn) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, string(data))
	return nil
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

// fakeGateway is an in-memory persistence collaborator.
type fakeGateway struct {
	mu        sync.Mutex
	messages  []*chat.ConversationMessage
	nextID    int64
	createErr error
	markErr   error
}

func (g *fakeGateway) CreateMessage(_ context.Context, conversationID int64, body string, senderID int64, _ string, recipientID int64) (*chat.ConversationMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.nextID++
	msg := &chat.ConversationMessage{
		ID:             g.nextID,
		ConversationID: conversationID,
		Body:           body,
		SentToID:       recipientID,
		CreatedByID:    senderID,
		IsRead:         false,
		CreatedAt:      time.Now(),
	}
	g.messages = append(g.messages, msg)
	return msg, nil
}

func (g *fakeGateway) MarkRead(_ context.Context, conversationID, recipientID int64) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.markErr != nil {
		return 0, g.markErr
	}
	var count int64
	for _, msg := range g.messages {
		if msg.ConversationID == conversationID && msg.SentToID == recipientID && !msg.IsRead {
			msg.IsRead = true
			count++
		}
	}
	return count, nil
}

type fixture struct {
	registry *broadcast.Registry
	router   *broadcast.Router
	gateway  *fakeGateway
}

func newFixture() *fixture {
	registry := broadcast.NewRegistry()
	return &fixture{
		registry: registry,
		router:   broadcast.NewRouter(registry),
		gateway:  &fakeGateway{},
	}
}

func (f *fixture) session(id string, identity Identity, room string) (*Session, *fakeConn) {
	conn := &fakeConn{}
	s := NewSession(id, conn, identity, room, f.registry, f.router, f.gateway)
	return s, conn
}

func TestSession_OpenJoinsRoomAndInbox(t *testing.T) {
	f := newFixture()

	authed, _ := f.session("a", Identity{UserID: 7, Name: "Alice", Authenticated: true}, "42")
	anon, _ := f.session("b", Identity{}, "42")

	if authed.State() != StateConnecting {
		t.Fatalf("State() = %v before Open, want StateConnecting", authed.State())
	}

	authed.Open()
	anon.Open()

	if authed.State() != StateOpen {
		t.Errorf("State() = %v after Open, want StateOpen", authed.State())
	}
	if got := f.registry.Members("chat_42"); got != 2 {
		t.Errorf("room members = %d, want 2", got)
	}
	if got := f.registry.Members("user_7"); got != 1 {
		t.Errorf("inbox members for authenticated user = %d, want 1", got)
	}
	if got := f.registry.ChannelCount(); got != 2 {
		t.Errorf("ChannelCount() = %d, want 2 (no inbox for anonymous)", got)
	}
}

func TestSession_CloseUnwindsAllMemberships(t *testing.T) {
	f := newFixture()
	s, _ := f.session("a", Identity{UserID: 7, Name: "Alice", Authenticated: true}, "42")
	s.Open()

	s.Close()
	s.Close() // disconnect may fire more than once

	if s.State() != StateClosed {
		t.Errorf("State() = %v after Close, want StateClosed", s.State())
	}
	if got := f.registry.Members("chat_42"); got != 0 {
		t.Errorf("room members = %d after Close, want 0", got)
	}
	if got := f.registry.Members("user_7"); got != 0 {
		t.Errorf("inbox members = %d after Close, want 0", got)
	}

	// A later broadcast must neither deliver to the session nor error.
	if delivered := f.registry.Broadcast("chat_42", []byte("{}")); delivered != 0 {
		t.Errorf("Broadcast() delivered = %d after Close, want 0", delivered)
	}
}

func TestSession_CloseBeforeOpen(t *testing.T) {
	f := newFixture()
	s, _ := f.session("a", Identity{UserID: 7, Authenticated: true}, "42")

	// Transport error before handshake joins completed.
	s.Close()

	if s.State() != StateClosed {
		t.Errorf("State() = %v, want StateClosed", s.State())
	}
	if got := f.registry.ChannelCount(); got != 0 {
		t.Errorf("ChannelCount() = %d, want 0", got)
	}

	// Open after Close must not resurrect the session.
	s.Open()
	if got := f.registry.ChannelCount(); got != 0 {
		t.Errorf("ChannelCount() = %d after Open on closed session, want 0", got)
	}
}

func TestSession_SendAfterCloseFails(t *testing.T) {
	f := newFixture()
	s, _ := f.session("a", Identity{}, "42")
	s.Open()
	s.Close()

	if err := s.Send([]byte("{}")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Send() error = %v, want ErrSessionClosed", err)
	}
}

// Alice (user 7) messages Bob (user 9) in room "42". Bob sees
// the room broadcast and, being bound to his inbox channel, exactly one
// notification.
func TestSession_ChatMessageFanout(t *testing.T) {
	f := newFixture()
	alice, aliceConn := f.session("a", Identity{UserID: 7, Name: "Alice", Authenticated: true}, "42")
	bob, bobConn := f.session("b", Identity{UserID: 9, Name: "Bob", Authenticated: true}, "42")
	alice.Open()
	bob.Open()

	alice.HandleInbound(context.Background(), []byte(
		`{"event":"chat_message","data":{"conversation_id":1,"sent_to_id":9,"name":"Alice","body":"hi"}}`))

	wantRoom := `{"event":"chat_message","body":"hi","name":"Alice"}`
	wantNotif := `{"event":"new_message_notification","message":"New message from Alice: hi","from_user":"Alice"}`

	bobFrames := bobConn.received()
	if len(bobFrames) != 2 {
		t.Fatalf("recipient received %d frames, want 2: %v", len(bobFrames), bobFrames)
	}
	if bobFrames[0] != wantRoom {
		t.Errorf("room frame = %s, want %s", bobFrames[0], wantRoom)
	}
	if bobFrames[1] != wantNotif {
		t.Errorf("notification frame = %s, want %s", bobFrames[1], wantNotif)
	}

	// Sender is also a room member and sees the room broadcast only.
	aliceFrames := aliceConn.received()
	if len(aliceFrames) != 1 || aliceFrames[0] != wantRoom {
		t.Errorf("sender frames = %v, want exactly the room broadcast", aliceFrames)
	}

	// The message row was persisted unread.
	if len(f.gateway.messages) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(f.gateway.messages))
	}
	msg := f.gateway.messages[0]
	if msg.ConversationID != 1 || msg.SentToID != 9 || msg.CreatedByID != 7 {
		t.Errorf("message row = %+v, want conversation 1 from 7 to 9", msg)
	}
	if msg.IsRead {
		t.Error("message row created with IsRead = true, want false")
	}
}

// Bob marks conversation 1 read; the row flips and
// the room observes the receipt.
func TestSession_MarkRead(t *testing.T) {
	f := newFixture()
	alice, aliceConn := f.session("a", Identity{UserID: 7, Name: "Alice", Authenticated: true}, "42")
	bob, _ := f.session("b", Identity{UserID: 9, Name: "Bob", Authenticated: true}, "42")
	alice.Open()
	bob.Open()

	alice.HandleInbound(context.Background(), []byte(
		`{"event":"chat_message","data":{"conversation_id":1,"sent_to_id":9,"name":"Alice","body":"hi"}}`))

	bob.HandleInbound(context.Background(), []byte(
		`{"event":"mark_read","data":{"conversation_id":1}}`))

	if !f.gateway.messages[0].IsRead {
		t.Error("message IsRead = false after mark_read, want true")
	}

	frames := aliceConn.received()
	want := `{"event":"messages_marked_read","user_id":9}`
	if len(frames) == 0 || frames[len(frames)-1] != want {
		t.Errorf("room frames = %v, want last frame %s", frames, want)
	}
}

func TestSession_MarkReadScopedToRecipientAndConversation(t *testing.T) {
	f := newFixture()
	bob, _ := f.session("b", Identity{UserID: 9, Name: "Bob", Authenticated: true}, "42")
	bob.Open()

	// Unread rows: two for Bob in conversation 1, one for Bob elsewhere, one
	// for another user in conversation 1.
	ctx := context.Background()
	_, _ = f.gateway.CreateMessage(ctx, 1, "a", 7, "Alice", 9)
	_, _ = f.gateway.CreateMessage(ctx, 1, "b", 7, "Alice", 9)
	_, _ = f.gateway.CreateMessage(ctx, 2, "c", 7, "Alice", 9)
	_, _ = f.gateway.CreateMessage(ctx, 1, "d", 9, "Bob", 7)

	bob.HandleInbound(ctx, []byte(`{"event":"mark_read","data":{"conversation_id":1}}`))

	for _, msg := range f.gateway.messages {
		wantRead := msg.ConversationID == 1 && msg.SentToID == 9
		if msg.IsRead != wantRead {
			t.Errorf("message %q IsRead = %v, want %v", msg.Body, msg.IsRead, wantRead)
		}
	}
}

func TestSession_MarkReadRequiresAuthentication(t *testing.T) {
	f := newFixture()
	anon, _ := f.session("a", Identity{}, "42")
	peer, peerConn := f.session("b", Identity{UserID: 9, Authenticated: true}, "42")
	anon.Open()
	peer.Open()

	_, _ = f.gateway.CreateMessage(context.Background(), 1, "hi", 7, "Alice", 9)

	anon.HandleInbound(context.Background(), []byte(`{"event":"mark_read","data":{"conversation_id":1}}`))

	if f.gateway.messages[0].IsRead {
		t.Error("anonymous mark_read mutated persisted state")
	}
	if got := peerConn.received(); len(got) != 0 {
		t.Errorf("room received %v for rejected mark_read, want nothing", got)
	}
}

func TestSession_Typing(t *testing.T) {
	f := newFixture()
	alice, _ := f.session("a", Identity{UserID: 7, Name: "Alice", Authenticated: true}, "42")
	bob, bobConn := f.session("b", Identity{UserID: 9, Authenticated: true}, "42")
	alice.Open()
	bob.Open()

	alice.HandleInbound(context.Background(), []byte(`{"event":"typing","data":{"name":"Alice"}}`))

	frames := bobConn.received()
	want := `{"event":"typing","name":"Alice"}`
	if len(frames) != 1 || frames[0] != want {
		t.Errorf("frames = %v, want [%s]", frames, want)
	}
	if len(f.gateway.messages) != 0 {
		t.Errorf("typing persisted %d messages, want 0", len(f.gateway.messages))
	}
}

func TestSession_PersistenceFailureSuppressesBroadcast(t *testing.T) {
	f := newFixture()
	f.gateway.createErr = errors.New("database is locked")

	alice, _ := f.session("a", Identity{UserID: 7, Name: "Alice", Authenticated: true}, "42")
	bob, bobConn := f.session("b", Identity{UserID: 9, Authenticated: true}, "42")
	alice.Open()
	bob.Open()

	alice.HandleInbound(context.Background(), []byte(
		`{"event":"chat_message","data":{"conversation_id":1,"sent_to_id":9,"name":"Alice","body":"hi"}}`))

	if got := bobConn.received(); len(got) != 0 {
		t.Errorf("room received %v for unpersisted message, want nothing", got)
	}
}

func TestSession_MalformedFramesIgnored(t *testing.T) {
	f := newFixture()
	s, _ := f.session("a", Identity{UserID: 7, Authenticated: true}, "42")
	s.Open()

	frames := []string{
		`not json`,
		`{"event":"presence","data":{}}`,
		`{"event":"chat_message","data":{"conversation_id":1}}`,
	}
	for _, frame := range frames {
		s.HandleInbound(context.Background(), []byte(frame))
	}

	if s.State() != StateOpen {
		t.Errorf("State() = %v after malformed frames, want StateOpen", s.State())
	}
	if len(f.gateway.messages) != 0 {
		t.Errorf("malformed frames persisted %d messages, want 0", len(f.gateway.messages))
	}
}

func TestSession_NotificationWithoutRecipientConnectionIsNoop(t *testing.T) {
	f := newFixture()
	alice, aliceConn := f.session("a", Identity{UserID: 7, Name: "Alice", Authenticated: true}, "42")
	alice.Open()

	// Recipient 9 has no open connection; both fan-outs are best effort.
	alice.HandleInbound(context.Background(), []byte(
		`{"event":"chat_message","data":{"conversation_id":1,"sent_to_id":9,"name":"Alice","body":"hi"}}`))

	if len(f.gateway.messages) != 1 {
		t.Errorf("persisted %d messages, want 1", len(f.gateway.messages))
	}
	if got := aliceConn.received(); len(got) != 1 {
		t.Errorf("sender frames = %v, want the room broadcast only", got)
	}
}
