package broadcast

import (
	"context"
	"log"

	"github.com/go-monolith/mono"
)

// Module owns the channel registry and fan-out router shared by every live
// connection.
type Module struct {
	registry *Registry
	router   *Router
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new broadcast module.
func NewModule() *Module {
	registry := NewRegistry()
	return &Module{
		registry: registry,
		router:   NewRouter(registry),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broadcast"
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[broadcast] Module started - channel registry ready")
	return nil
}

// Stop shuts down the module. Connections unwind their own memberships on
// disconnect, so there is nothing to tear down here.
func (m *Module) Stop(_ context.Context) error {
	log.Printf("[broadcast] Module stopped - %d channels were active", m.registry.ChannelCount())
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"active_channels": m.registry.ChannelCount(),
		},
	}
}

// Registry returns the channel registry for session wiring.
func (m *Module) Registry() *Registry {
	return m.registry
}

// Router returns the fan-out router for session wiring.
func (m *Module) Router() *Router {
	return m.router
}
