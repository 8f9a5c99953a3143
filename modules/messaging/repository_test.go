package messaging

import (
	"errors"
	"testing"
	"time"

	domain "github.com/example/chat-relay/domain/chat"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&domain.Conversation{},
		&domain.ConversationUser{},
		&domain.ConversationMessage{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func TestRepository_CreateMessage(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	conv, err := repo.FindOrCreateForUsers(7, 9)
	if err != nil {
		t.Fatalf("FindOrCreateForUsers() error = %v", err)
	}

	t.Run("valid message", func(t *testing.T) {
		msg, err := repo.CreateMessage(conv.ID, "hi", 7, 9)
		if err != nil {
			t.Fatalf("CreateMessage() error = %v", err)
		}

		if msg.ID == 0 {
			t.Error("CreateMessage() message.ID should be assigned")
		}
		if msg.IsRead {
			t.Error("CreateMessage() IsRead = true, want false")
		}

		var found domain.ConversationMessage
		if err := db.First(&found, "id = ?", msg.ID).Error; err != nil {
			t.Fatalf("failed to find created message: %v", err)
		}
		if found.Body != "hi" || found.CreatedByID != 7 || found.SentToID != 9 {
			t.Errorf("stored message = %+v, want body hi from 7 to 9", found)
		}
	})

	t.Run("unknown conversation", func(t *testing.T) {
		_, err := repo.CreateMessage(999, "hi", 7, 9)
		if !errors.Is(err, ErrConversationNotFound) {
			t.Errorf("CreateMessage() error = %v, want ErrConversationNotFound", err)
		}
	})

	t.Run("bumps modified_at", func(t *testing.T) {
		before, _ := repo.FindConversation(conv.ID)
		msg, err := repo.CreateMessage(conv.ID, "again", 7, 9)
		if err != nil {
			t.Fatalf("CreateMessage() error = %v", err)
		}
		after, _ := repo.FindConversation(conv.ID)
		if after.ModifiedAt.Before(before.ModifiedAt) {
			t.Errorf("ModifiedAt = %v, want at or after %v", after.ModifiedAt, before.ModifiedAt)
		}
		if delta := msg.CreatedAt.Sub(after.ModifiedAt); delta < -time.Second || delta > time.Second {
			t.Errorf("ModifiedAt = %v, want close to message time %v", after.ModifiedAt, msg.CreatedAt)
		}
	})
}

func TestRepository_MarkRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	convA, _ := repo.FindOrCreateForUsers(7, 9)
	convB, _ := repo.FindOrCreateForUsers(7, 11)

	// Two unread for user 9 in convA, one for user 7 in convA, one for user 9
	// in convB.
	_, _ = repo.CreateMessage(convA.ID, "a", 7, 9)
	_, _ = repo.CreateMessage(convA.ID, "b", 7, 9)
	_, _ = repo.CreateMessage(convA.ID, "c", 9, 7)
	_, _ = repo.CreateMessage(convB.ID, "d", 7, 9)

	count, err := repo.MarkRead(convA.ID, 9)
	if err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if count != 2 {
		t.Errorf("MarkRead() count = %d, want 2", count)
	}

	var msgs []domain.ConversationMessage
	if err := db.Order("id ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("failed to load messages: %v", err)
	}
	for _, msg := range msgs {
		wantRead := msg.ConversationID == convA.ID && msg.SentToID == 9
		if msg.IsRead != wantRead {
			t.Errorf("message %q IsRead = %v, want %v", msg.Body, msg.IsRead, wantRead)
		}
	}

	t.Run("second call affects nothing", func(t *testing.T) {
		count, err := repo.MarkRead(convA.ID, 9)
		if err != nil {
			t.Fatalf("MarkRead() error = %v", err)
		}
		if count != 0 {
			t.Errorf("MarkRead() count = %d on second call, want 0", count)
		}
	})
}

func TestRepository_FindOrCreateForUsers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	first, err := repo.FindOrCreateForUsers(7, 9)
	if err != nil {
		t.Fatalf("FindOrCreateForUsers() error = %v", err)
	}

	t.Run("reuses existing conversation", func(t *testing.T) {
		again, err := repo.FindOrCreateForUsers(7, 9)
		if err != nil {
			t.Fatalf("FindOrCreateForUsers() error = %v", err)
		}
		if again.ID != first.ID {
			t.Errorf("FindOrCreateForUsers() ID = %d, want existing %d", again.ID, first.ID)
		}
	})

	t.Run("reuses regardless of argument order", func(t *testing.T) {
		again, err := repo.FindOrCreateForUsers(9, 7)
		if err != nil {
			t.Fatalf("FindOrCreateForUsers() error = %v", err)
		}
		if again.ID != first.ID {
			t.Errorf("FindOrCreateForUsers() ID = %d, want existing %d", again.ID, first.ID)
		}
	})

	t.Run("different pair creates new conversation", func(t *testing.T) {
		other, err := repo.FindOrCreateForUsers(7, 11)
		if err != nil {
			t.Fatalf("FindOrCreateForUsers() error = %v", err)
		}
		if other.ID == first.ID {
			t.Error("FindOrCreateForUsers() reused conversation for a different pair")
		}
	})

	t.Run("members recorded", func(t *testing.T) {
		ids, err := repo.MemberIDs(first.ID)
		if err != nil {
			t.Fatalf("MemberIDs() error = %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("MemberIDs() = %v, want 2 members", ids)
		}
	})
}

func TestRepository_ListForUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	convA, _ := repo.FindOrCreateForUsers(7, 9)
	convB, _ := repo.FindOrCreateForUsers(7, 11)
	_, _ = repo.FindOrCreateForUsers(9, 11) // user 7 not a member

	// A message in convA makes it the most recently modified.
	_, _ = repo.CreateMessage(convA.ID, "hi", 7, 9)

	convs, err := repo.ListForUser(7)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("ListForUser() count = %d, want 2", len(convs))
	}
	if convs[0].ID != convA.ID || convs[1].ID != convB.ID {
		t.Errorf("ListForUser() order = [%d %d], want [%d %d]", convs[0].ID, convs[1].ID, convA.ID, convB.ID)
	}
}

func TestRepository_Messages(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	conv, _ := repo.FindOrCreateForUsers(7, 9)
	bodies := []string{"one", "two", "three"}
	for _, body := range bodies {
		_, _ = repo.CreateMessage(conv.ID, body, 7, 9)
	}

	msgs, err := repo.Messages(conv.ID)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != len(bodies) {
		t.Fatalf("Messages() count = %d, want %d", len(msgs), len(bodies))
	}
	for i, msg := range msgs {
		if msg.Body != bodies[i] {
			t.Errorf("Messages()[%d].Body = %q, want %q", i, msg.Body, bodies[i])
		}
	}
}

func BenchmarkRepository_CreateMessage(b *testing.B) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		b.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.Conversation{}, &domain.ConversationUser{}, &domain.ConversationMessage{}); err != nil {
		b.Fatalf("failed to migrate test database: %v", err)
	}
	repo := NewRepository(db)
	conv, _ := repo.FindOrCreateForUsers(7, 9)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = repo.CreateMessage(conv.ID, "benchmark message", 7, 9)
	}
}
