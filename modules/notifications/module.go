package notifications

import (
	"context"
	"fmt"
	"log"
	"os"

	domain "github.com/example/chat-relay/domain/notification"
	"github.com/example/chat-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module keeps a per-user notification feed in sync with messaging events.
type Module struct {
	db     *gorm.DB
	repo   *Repository
	dbPath string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new notifications module.
func NewModule() *Module {
	dbPath := os.Getenv("NOTIFICATIONS_DB_PATH")
	if dbPath == "" {
		dbPath = "notifications.db"
	}
	return &Module{dbPath: dbPath}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "notifications"
}

// Start initializes the notification store.
func (m *Module) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.Notification{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.repo = NewRepository(db)

	log.Printf("[notifications] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[notifications] Module stopped")
	return nil
}

// RegisterEventConsumers registers event handlers.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.MessageCreatedV1, m.handleMessageCreated, m); err != nil {
		return fmt.Errorf("failed to register MessageCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.MessagesReadV1, m.handleMessagesRead, m); err != nil {
		return fmt.Errorf("failed to register MessagesRead consumer: %w", err)
	}

	log.Println("[notifications] Registered event consumers: MessageCreated, MessagesRead")
	return nil
}

func (m *Module) handleMessageCreated(_ context.Context, event events.MessageCreatedEvent, _ *mono.Msg) error {
	n := &domain.Notification{
		RecipientID:    event.RecipientID,
		SenderID:       event.SenderID,
		SenderName:     event.SenderName,
		Type:           domain.TypeMessage,
		ConversationID: event.ConversationID,
		Message:        fmt.Sprintf("New message from %s: %s", event.SenderName, event.Body),
		CreatedAt:      event.CreatedAt,
	}
	if err := m.repo.Create(n); err != nil {
		log.Printf("[notifications] Failed to store notification: %v", err)
		return err
	}

	log.Printf("[notifications] Stored message notification for user %d (conversation %d)",
		event.RecipientID, event.ConversationID)
	return nil
}

func (m *Module) handleMessagesRead(_ context.Context, event events.MessagesReadEvent, _ *mono.Msg) error {
	count, err := m.repo.MarkConversationRead(event.ConversationID, event.UserID)
	if err != nil {
		log.Printf("[notifications] Failed to mark notifications read: %v", err)
		return err
	}

	if count > 0 {
		log.Printf("[notifications] Marked %d notifications read for user %d (conversation %d)",
			count, event.UserID, event.ConversationID)
	}
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.dbPath,
		},
	}
}

// Repository returns the notification repository for API wiring.
func (m *Module) Repository() *Repository {
	return m.repo
}
