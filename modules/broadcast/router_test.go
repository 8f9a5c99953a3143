package broadcast

import (
	"testing"
)

func TestRouter_PublishSerializesEnvelope(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)
	sub := &fakeSubscriber{}
	reg.Join("chat_42", sub)

	event := struct {
		Event string `json:"event"`
		Name  string `json:"name"`
	}{Event: "typing", Name: "Alice"}

	if delivered := router.Publish("chat_42", event); delivered != 1 {
		t.Fatalf("Publish() delivered = %d, want 1", delivered)
	}

	want := `{"event":"typing","name":"Alice"}`
	if got := string(sub.frames[0]); got != want {
		t.Errorf("frame = %s, want %s", got, want)
	}
}

func TestRouter_PublishToEmptyChannel(t *testing.T) {
	router := NewRouter(NewRegistry())

	if delivered := router.Publish("user_9", map[string]string{"event": "typing"}); delivered != 0 {
		t.Errorf("Publish() delivered = %d, want 0", delivered)
	}
}

func TestRouter_PublishUnmarshalableEvent(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)
	sub := &fakeSubscriber{}
	reg.Join("chat_1", sub)

	// Channels cannot be marshaled to JSON; the frame is dropped, not sent.
	if delivered := router.Publish("chat_1", make(chan int)); delivered != 0 {
		t.Errorf("Publish() delivered = %d, want 0", delivered)
	}
	if sub.received() != 0 {
		t.Errorf("subscriber received %d frames, want 0", sub.received())
	}
}
