package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/chat-relay/modules/api"
	"github.com/example/chat-relay/modules/auth"
	"github.com/example/chat-relay/modules/broadcast"
	"github.com/example/chat-relay/modules/messaging"
	"github.com/example/chat-relay/modules/notifications"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Chat Relay - Real-time Messaging Backend ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	broadcastModule := broadcast.NewModule()
	authModule := auth.NewModule()
	messagingModule := messaging.NewModule()
	notificationsModule := notifications.NewModule()
	apiModule := api.NewModule()

	// Inject shared infrastructure into the API module. The registry and
	// router exist from construction; services are resolved by the API module
	// once its dependencies have started.
	apiModule.SetBroadcast(broadcastModule.Registry(), broadcastModule.Router())
	apiModule.SetAuthModule(authModule)
	apiModule.SetMessagingModule(messagingModule)
	apiModule.SetNotificationsModule(notificationsModule)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - broadcast: Channel registry + fan-out router
	// - auth: Accounts and identity resolution
	// - messaging: Conversations and messages (EventEmitterModule)
	// - notifications: Notification feed (EventConsumerModule)
	// - api: Fiber HTTP/WebSocket server, depends on all of the above
	app.Register(broadcastModule)
	app.Register(authModule)
	app.Register(messagingModule)
	app.Register(notificationsModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Event Bus: NATS JetStream (internal pubsub)")
	log.Printf("  - NATS URL: %s", natsURL)
	log.Println("")
	log.Println("Event flow:")
	log.Println("  - MessageCreated events -> notifications module -> notification feed")
	log.Println("  - MessagesRead events -> notifications module -> feed cleanup")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                            - Health check")
	log.Println("  POST   /api/v1/auth/register              - Create an account")
	log.Println("  POST   /api/v1/auth/login                 - Log in, returns a JWT")
	log.Println("  GET    /api/v1/conversations              - List your conversations")
	log.Println("  GET    /api/v1/conversations/:id          - Conversation with messages")
	log.Println("  POST   /api/v1/conversations/start/:user_id - Start a conversation")
	log.Println("  GET    /api/v1/notifications              - Your notification feed")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws/:room_name):", port)
	log.Println("  Connect with: ws://localhost:3000/ws/42?token=<jwt>")
	log.Println("  Inbound events: chat_message, typing, mark_read")
	log.Println("  Outbound events: chat_message, typing, new_message_notification, messages_marked_read")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
