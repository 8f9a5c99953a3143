package broadcast

import (
	"encoding/json"
	"log"
)

// Router serializes outbound events to their wire envelope and fans them out
// through the Registry. It is a thin wrapper: a channel with zero members is
// a silent no-op, matching the undelivered-notification semantics.
type Router struct {
	registry *Registry
}

// NewRouter creates a Router over the given registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Publish marshals event once and broadcasts the frame to the channel.
// Returns the number of members that received it.
func (r *Router) Publish(channel string, event any) int {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[broadcast] Failed to marshal event for %s: %v", channel, err)
		return 0
	}
	return r.registry.Broadcast(channel, data)
}
