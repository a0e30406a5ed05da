package handlers

import (
	"context"
	"errors"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/idkjulii/PetAlertBack/internal/models"
	"github.com/idkjulii/PetAlertBack/internal/realtime"
	"github.com/idkjulii/PetAlertBack/internal/services"
	chatws "github.com/idkjulii/PetAlertBack/internal/websocket"
)

type chatApplicationService interface {
	StartConversation(ctx context.Context, userID, reportID, otherUserID string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	ListMessages(ctx context.Context, userID, conversationID string, limit int, before *time.Time) ([]models.Message, bool, error)
	SendMessage(ctx context.Context, userID, conversationID, content string, imageURL *string) (*models.Message, error)
	MarkConversationRead(ctx context.Context, userID, conversationID string) error
}

type ChatHandler struct {
	service chatApplicationService
	hub     *chatws.Hub
	feed    *realtime.Feed
}

func NewChatHandler(service chatApplicationService, hub *chatws.Hub, feed *realtime.Feed) *ChatHandler {
	return &ChatHandler{
		service: service,
		hub:     hub,
		feed:    feed,
	}
}

type startConversationRequest struct {
	ReportID    string `json:"report_id"`
	OtherUserID string `json:"other_user_id"`
}

type sendMessageRequest struct {
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversations, err := h.service.ListConversations(c.Context(), userID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) StartConversation(c *fiber.Ctx) error {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req startConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	conversation, err := h.service.StartConversation(c.Context(), userID, req.ReportID, req.OtherUserID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"conversation": conversation})
}

// GetMessages serves one page of a conversation, newest first. The cursor is
// the created_at of the oldest message already held by the client; pass it
// back as ?cursor= to page further into history.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID := c.Params("id")
	limit := parsePositiveInt(c.Query("limit"), services.DefaultMessagePageSize)
	cursor, err := parseCursor(c.Query("cursor"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid cursor"})
	}

	messages, hasMore, err := h.service.ListMessages(c.Context(), userID, conversationID, limit, cursor)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildCursorMeta(messages, limit, hasMore),
	})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.SendMessage(c.Context(), userID, c.Params("id"), req.Content, req.ImageURL)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	if err := h.service.MarkConversationRead(c.Context(), userID, c.Params("id")); err != nil {
		return mapChatError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}
	if _, err := authenticatedUserID(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	client := chatws.NewClient(h.hub, conn, userID, h.service, h.feed)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(context.Background())
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrSelfConversation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot start a conversation with yourself"})
	case errors.Is(err, services.ErrEmptyMessage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message needs text or an image"})
	case errors.Is(err, services.ErrNotParticipant):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not a participant of this conversation"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
