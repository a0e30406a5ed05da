package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/idkjulii/PetAlertBack/internal/models"
	"github.com/idkjulii/PetAlertBack/internal/services"
	chatws "github.com/idkjulii/PetAlertBack/internal/websocket"
)

type stubChatService struct {
	conversationsResult []models.ConversationSummary
	conversationsErr    error
	startResult         *models.Conversation
	startErr            error
	messagesResult      []models.Message
	messagesHasMore     bool
	messagesErr         error
	sendResult          *models.Message
	sendErr             error
	markReadErr         error

	lastUserID         string
	lastReportID       string
	lastOtherUserID    string
	lastConversationID string
	lastLimit          int
	lastBefore         *time.Time
	lastContent        string
}

func (s *stubChatService) StartConversation(_ context.Context, userID, reportID, otherUserID string) (*models.Conversation, error) {
	s.lastUserID = userID
	s.lastReportID = reportID
	s.lastOtherUserID = otherUserID
	return s.startResult, s.startErr
}

func (s *stubChatService) ListConversations(_ context.Context, userID string) ([]models.ConversationSummary, error) {
	s.lastUserID = userID
	return s.conversationsResult, s.conversationsErr
}

func (s *stubChatService) ListMessages(_ context.Context, userID, conversationID string, limit int, before *time.Time) ([]models.Message, bool, error) {
	s.lastUserID = userID
	s.lastConversationID = conversationID
	s.lastLimit = limit
	s.lastBefore = before
	return s.messagesResult, s.messagesHasMore, s.messagesErr
}

func (s *stubChatService) SendMessage(_ context.Context, userID, conversationID, content string, _ *string) (*models.Message, error) {
	s.lastUserID = userID
	s.lastConversationID = conversationID
	s.lastContent = content
	return s.sendResult, s.sendErr
}

func (s *stubChatService) MarkConversationRead(_ context.Context, userID, conversationID string) error {
	s.lastUserID = userID
	s.lastConversationID = conversationID
	return s.markReadErr
}

func chatTestApp(service *stubChatService) *fiber.App {
	handler := NewChatHandler(service, chatws.NewHub(), nil)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "user-42")
		return c.Next()
	})
	app.Get("/api/v1/conversations", handler.ListConversations)
	app.Post("/api/v1/conversations", handler.StartConversation)
	app.Get("/api/v1/conversations/:id/messages", handler.GetMessages)
	app.Post("/api/v1/conversations/:id/messages", handler.SendMessage)
	app.Post("/api/v1/conversations/:id/read", handler.MarkRead)
	return app
}

func TestListConversationsReturnsSummaries(t *testing.T) {
	service := &stubChatService{
		conversationsResult: []models.ConversationSummary{
			{
				Conversation: models.Conversation{ID: "conv-1", ReportID: "report-1", Participant1: "user-42", Participant2: "user-7"},
				LastMessage: &models.Message{
					ID:             "msg-3",
					ConversationID: "conv-1",
					SenderID:       "user-7",
					Content:        "I think I saw her near the park",
					CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				},
				UnreadCount: 2,
			},
		},
	}
	app := chatTestApp(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastUserID != "user-42" {
		t.Fatalf("unexpected actor: %q", service.lastUserID)
	}

	var body struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Conversations) != 1 || body.Conversations[0].UnreadCount != 2 {
		t.Fatalf("unexpected response: %+v", body.Conversations)
	}
}

func TestStartConversationCreated(t *testing.T) {
	service := &stubChatService{
		startResult: &models.Conversation{ID: "conv-9", ReportID: "report-1", Participant1: "user-42", Participant2: "user-7"},
	}
	app := chatTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations",
		strings.NewReader(`{"report_id":"report-1","other_user_id":"user-7"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastReportID != "report-1" || service.lastOtherUserID != "user-7" {
		t.Fatalf("unexpected request: %q %q", service.lastReportID, service.lastOtherUserID)
	}
}

func TestStartConversationWithSelfIsBadRequest(t *testing.T) {
	service := &stubChatService{startErr: services.ErrSelfConversation}
	app := chatTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations",
		strings.NewReader(`{"report_id":"report-1","other_user_id":"user-42"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetMessagesPassesCursorAndBuildsMeta(t *testing.T) {
	oldest := time.Date(2026, 2, 28, 23, 50, 0, 0, time.UTC)
	service := &stubChatService{
		messagesResult: []models.Message{
			{ID: "m2", ConversationID: "conv-1", SenderID: "user-7", Content: "b", CreatedAt: oldest.Add(time.Minute)},
			{ID: "m1", ConversationID: "conv-1", SenderID: "user-42", Content: "a", CreatedAt: oldest},
		},
		messagesHasMore: true,
	}
	app := chatTestApp(service)

	cursor := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339Nano)
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/conversations/conv-1/messages?limit=2&cursor="+cursor, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastConversationID != "conv-1" || service.lastLimit != 2 {
		t.Fatalf("unexpected query: %q limit=%d", service.lastConversationID, service.lastLimit)
	}
	if service.lastBefore == nil || !service.lastBefore.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("cursor not forwarded: %v", service.lastBefore)
	}

	var body struct {
		Messages   []models.Message `json:"messages"`
		Pagination CursorMeta       `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !body.Pagination.HasMore || body.Pagination.NextCursor == nil {
		t.Fatalf("unexpected pagination: %+v", body.Pagination)
	}
	if *body.Pagination.NextCursor != oldest.Format(time.RFC3339Nano) {
		t.Fatalf("next cursor = %q, want oldest message timestamp", *body.Pagination.NextCursor)
	}
}

func TestGetMessagesRejectsBadCursor(t *testing.T) {
	app := chatTestApp(&stubChatService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/conv-1/messages?cursor=yesterday", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetMessagesFromOutsiderIsForbidden(t *testing.T) {
	service := &stubChatService{messagesErr: services.ErrNotParticipant}
	app := chatTestApp(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/conv-1/messages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSendMessageEndpoint(t *testing.T) {
	service := &stubChatService{
		sendResult: &models.Message{ID: "m1", ConversationID: "conv-1", SenderID: "user-42", Content: "hola"},
	}
	app := chatTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/conv-1/messages",
		strings.NewReader(`{"content":"hola"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastContent != "hola" {
		t.Fatalf("content = %q", service.lastContent)
	}
}

func TestSendEmptyMessageIsBadRequest(t *testing.T) {
	service := &stubChatService{sendErr: services.ErrEmptyMessage}
	app := chatTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/conv-1/messages",
		strings.NewReader(`{"content":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMarkReadReturnsNoContent(t *testing.T) {
	service := &stubChatService{}
	app := chatTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/conv-1/read", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if service.lastConversationID != "conv-1" {
		t.Fatalf("conversation = %q", service.lastConversationID)
	}
}
