package api

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/example/chat-relay/modules/auth"
	"github.com/example/chat-relay/modules/broadcast"
	"github.com/example/chat-relay/modules/messaging"
	"github.com/example/chat-relay/modules/notifications"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// APIModule is the HTTP API module with WebSocket support.
type APIModule struct {
	app      *fiber.App
	registry *broadcast.Registry
	router   *broadcast.Router
	port     string

	// Backing modules, injected from main.go. Their services are resolved in
	// Start, after the framework has started them.
	authModule  *auth.Module
	msgModule   *messaging.Module
	notifModule *notifications.Module

	authService   *auth.Service
	msgService    *messaging.Service
	notifications *notifications.Repository
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule() *APIModule {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	return &APIModule{
		port: port,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"broadcast", "auth", "messaging", "notifications"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
// Dependencies are wired directly from main.go, so there is nothing to do.
func (m *APIModule) SetDependencyServiceContainer(_ string, _ mono.ServiceContainer) {}

// SetBroadcast sets the channel registry and fan-out router (called from main.go).
func (m *APIModule) SetBroadcast(registry *broadcast.Registry, router *broadcast.Router) {
	m.registry = registry
	m.router = router
}

// SetAuthModule sets the auth module (called from main.go).
func (m *APIModule) SetAuthModule(mod *auth.Module) {
	m.authModule = mod
}

// SetMessagingModule sets the messaging module (called from main.go).
func (m *APIModule) SetMessagingModule(mod *messaging.Module) {
	m.msgModule = mod
}

// SetNotificationsModule sets the notifications module (called from main.go).
func (m *APIModule) SetNotificationsModule(mod *notifications.Module) {
	m.notifModule = mod
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.registry == nil || m.router == nil {
		return fmt.Errorf("broadcast dependency not set")
	}
	if m.authModule == nil || m.msgModule == nil || m.notifModule == nil {
		return fmt.Errorf("module dependencies not set")
	}

	m.authService = m.authModule.Service()
	m.msgService = m.msgModule.Service()
	m.notifications = m.notifModule.Repository()
	if m.authService == nil || m.msgService == nil || m.notifications == nil {
		return fmt.Errorf("dependency modules not started")
	}

	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	// Add recovery middleware
	m.app.Use(recover.New())

	// Allow browser clients from other origins
	m.app.Use(cors.New())

	// Add logging middleware
	m.app.Use(loggerMiddleware())

	// Setup routes
	m.setupRoutes()

	// Start server in goroutine
	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on :%s", m.port)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	return m.app.Shutdown()
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":     m.port,
			"channels": m.registry.ChannelCount(),
		},
	}
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		log.Printf("[api] %s %s %d", c.Method(), c.Path(), c.Response().StatusCode())
		return err
	}
}
