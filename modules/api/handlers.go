package api

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/example/chat-relay/modules/auth"
	"github.com/example/chat-relay/modules/messaging"
	"github.com/example/chat-relay/modules/relay"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	maxRoomNameLength        = 100
	defaultNotificationLimit = 50
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes() {
	// Health check
	m.app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws/:room_name", websocket.New(m.handleWebSocket))

	// REST API v1
	api := m.app.Group("/api/v1")

	// Authentication
	api.Post("/auth/register", m.register)
	api.Post("/auth/login", m.login)

	// Authenticated resources
	protected := api.Group("", AuthMiddleware(m.authService))
	protected.Get("/conversations", m.listConversations)
	protected.Get("/conversations/:id", m.getConversation)
	protected.Post("/conversations/start/:user_id", m.startConversation)
	protected.Get("/notifications", m.listNotifications)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":   "api",
			"channels": m.registry.ChannelCount(),
		},
	})
}

// register handles POST /api/v1/auth/register.
func (m *APIModule) register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	user, err := m.authService.Register(c.UserContext(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
				Error:   "user_exists",
				Message: "An account with this email already exists",
			})
		case errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrNameRequired),
			errors.Is(err, auth.ErrWeakPassword),
			errors.Is(err, auth.ErrPasswordTooLong):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "validation_error",
				Message: err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
				Error:   "registration_failed",
				Message: "Failed to register user",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	})
}

// login handles POST /api/v1/auth/login.
func (m *APIModule) login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	token, user, err := m.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "invalid_credentials",
				Message: "Invalid email or password",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "login_failed",
			Message: "Failed to log in",
		})
	}

	return c.JSON(TokenResponse{
		AccessToken: token,
		ExpiresIn:   m.authService.TokenDuration(),
		TokenType:   "Bearer",
		User: UserResponse{
			ID:        user.ID,
			Email:     user.Email,
			Name:      user.Name,
			CreatedAt: user.CreatedAt,
		},
	})
}

// listConversations handles GET /api/v1/conversations.
func (m *APIModule) listConversations(c *fiber.Ctx) error {
	claims := currentClaims(c)

	convs, err := m.msgService.ListConversations(c.UserContext(), claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list conversations",
		})
	}

	response := ConversationListResponse{
		Conversations: make([]ConversationResponse, 0, len(convs)),
	}
	for _, conv := range convs {
		response.Conversations = append(response.Conversations, ConversationResponse{
			ID:         conv.ID,
			CreatedAt:  conv.CreatedAt,
			ModifiedAt: conv.ModifiedAt,
		})
	}

	return c.JSON(response)
}

// getConversation handles GET /api/v1/conversations/:id.
func (m *APIModule) getConversation(c *fiber.Ctx) error {
	claims := currentClaims(c)

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Conversation id must be numeric",
		})
	}

	detail, err := m.msgService.GetConversation(c.UserContext(), conversationID, claims.UserID)
	if err != nil {
		if errors.Is(err, messaging.ErrConversationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "not_found",
				Message: "Conversation not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "fetch_failed",
			Message: "Failed to fetch conversation",
		})
	}

	return c.JSON(ConversationDetailResponse{
		Conversation: ConversationResponse{
			ID:         detail.Conversation.ID,
			CreatedAt:  detail.Conversation.CreatedAt,
			ModifiedAt: detail.Conversation.ModifiedAt,
		},
		MemberIDs: detail.MemberIDs,
		Messages:  detail.Messages,
	})
}

// startConversation handles POST /api/v1/conversations/start/:user_id.
func (m *APIModule) startConversation(c *fiber.Ctx) error {
	claims := currentClaims(c)

	targetID, err := strconv.ParseInt(c.Params("user_id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "User id must be numeric",
		})
	}
	if targetID == claims.UserID {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Cannot start a conversation with yourself",
		})
	}

	if _, err := m.authService.GetUser(c.UserContext(), targetID); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "not_found",
				Message: "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "fetch_failed",
			Message: "Failed to look up user",
		})
	}

	conv, err := m.msgService.StartConversation(c.UserContext(), claims.UserID, targetID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "start_failed",
			Message: "Failed to start conversation",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(ConversationResponse{
		ID:         conv.ID,
		CreatedAt:  conv.CreatedAt,
		ModifiedAt: conv.ModifiedAt,
	})
}

// listNotifications handles GET /api/v1/notifications.
func (m *APIModule) listNotifications(c *fiber.Ctx) error {
	claims := currentClaims(c)

	limit := defaultNotificationLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	list, err := m.notifications.ListForRecipient(claims.UserID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list notifications",
		})
	}
	unread, err := m.notifications.UnreadCount(claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to count notifications",
		})
	}

	return c.JSON(NotificationListResponse{
		Notifications: list,
		UnreadCount:   unread,
	})
}

// wsConn adapts a Fiber WebSocket connection to the relay session's writer.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) WriteText(data []byte) error {
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// handleWebSocket handles WebSocket connections at /ws/:room_name.
//
// The token query parameter is optional: connections without a valid token
// join the room anonymously and can relay typing and chat frames but cannot
// mark messages read or receive personal notifications.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	roomName := c.Params("room_name")
	if roomName == "" || len(roomName) > maxRoomNameLength {
		log.Printf("[api] Rejected WebSocket connection: bad room name")
		_ = c.Close()
		return
	}

	identity := m.authService.ResolveIdentity(context.Background(), c.Query("token"))

	session := relay.NewSession(
		uuid.New().String(),
		&wsConn{conn: c},
		identity,
		roomName,
		m.registry,
		m.router,
		m.msgService,
	)
	session.Open()
	defer session.Close()

	if identity.Authenticated {
		log.Printf("[api] WebSocket client connected: %s (user %d, room %s)",
			session.ID(), identity.UserID, roomName)
	} else {
		log.Printf("[api] WebSocket client connected: %s (anonymous, room %s)",
			session.ID(), roomName)
	}

	for {
		msgType, frame, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] Client %s closed connection", session.ID())
			} else {
				log.Printf("[api] Read error from %s: %v", session.ID(), err)
			}
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		session.HandleInbound(context.Background(), frame)
	}

	log.Printf("[api] WebSocket client disconnected: %s", session.ID())
}
