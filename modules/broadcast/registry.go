package broadcast

import (
	"fmt"
	"log"
	"sync"
)

// Subscriber receives raw broadcast frames. A Subscriber whose Send fails is
// treated as stale and removed from the channel it failed on.
type Subscriber interface {
	Send(data []byte) error
}

// RoomChannel returns the channel key for a chat room.
func RoomChannel(roomName string) string {
	return "chat_" + roomName
}

// InboxChannel returns the per-user channel key used for cross-room
// notifications.
func InboxChannel(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

// Registry maps channel keys to the set of live subscribers. Membership is
// the only mutable state shared across connections; the single RWMutex covers
// join, leave and the membership snapshot taken at broadcast time.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[Subscriber]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[Subscriber]struct{}),
	}
}

// Join adds sub to the channel's membership set. The channel is created on
// first join; joining twice is a no-op.
func (r *Registry) Join(channel string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[channel]
	if !ok {
		members = make(map[Subscriber]struct{})
		r.channels[channel] = members
	}
	members[sub] = struct{}{}
}

// Leave removes sub from the channel. Leaving a channel the subscriber is not
// a member of is a no-op; empty channels are pruned.
func (r *Registry) Leave(channel string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[channel]
	if !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(r.channels, channel)
	}
}

// Broadcast delivers data to every subscriber currently joined to the
// channel. Membership is snapshotted under the read lock and delivery happens
// outside it, so a concurrent join or leave may or may not see this frame.
// A subscriber whose Send fails is dropped from the channel; the failure
// never aborts delivery to the remaining members. Returns the number of
// successful deliveries; zero members is a silent no-op.
func (r *Registry) Broadcast(channel string, data []byte) int {
	r.mu.RLock()
	members := make([]Subscriber, 0, len(r.channels[channel]))
	for sub := range r.channels[channel] {
		members = append(members, sub)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, sub := range members {
		if err := sub.Send(data); err != nil {
			log.Printf("[broadcast] Dropping stale subscriber on %s: %v", channel, err)
			r.Leave(channel, sub)
			continue
		}
		delivered++
	}
	return delivered
}

// Members returns the current membership count of a channel.
func (r *Registry) Members(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channel])
}

// ChannelCount returns the number of channels with at least one member.
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
