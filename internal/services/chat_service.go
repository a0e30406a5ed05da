package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/idkjulii/PetAlertBack/internal/models"
	"github.com/idkjulii/PetAlertBack/internal/realtime"
)

var (
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	ErrNotParticipant   = errors.New("not a participant of this conversation")
	ErrEmptyMessage     = errors.New("message needs text or an image")
)

// DefaultMessagePageSize matches the page the feed controller requests.
const DefaultMessagePageSize = 40

type conversationStore interface {
	CreateOrGet(ctx context.Context, reportID, userA, userB string) (*models.Conversation, error)
	GetByIDForParticipant(ctx context.Context, conversationID, userID string) (*models.Conversation, error)
	ListForParticipant(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	Touch(ctx context.Context, conversationID string) error
}

type messageStore interface {
	Create(ctx context.Context, conversationID, senderID, content string, imageURL *string) (*models.Message, error)
	ListPage(ctx context.Context, conversationID string, limit int, before *time.Time) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID string) ([]models.Message, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event realtime.Event) error
}

type ChatService struct {
	conversations conversationStore
	messages      messageStore
	events        eventPublisher
}

func NewChatService(conversations conversationStore, messages messageStore, events eventPublisher) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		events:        events,
	}
}

// StartConversation returns the conversation between the caller and the other
// user about a report, creating it on first contact. Repeat calls land on the
// same row regardless of who initiates.
func (s *ChatService) StartConversation(
	ctx context.Context,
	userID string,
	reportID string,
	otherUserID string,
) (*models.Conversation, error) {
	if userID == "" || reportID == "" || otherUserID == "" {
		return nil, ErrInvalidInput
	}
	if userID == otherUserID {
		return nil, ErrSelfConversation
	}
	return s.conversations.CreateOrGet(ctx, reportID, userID, otherUserID)
}

func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	return s.conversations.ListForParticipant(ctx, userID)
}

// ListMessages returns one page of a conversation feed, newest first, plus
// whether an older page exists. The before cursor is exclusive.
func (s *ChatService) ListMessages(
	ctx context.Context,
	userID string,
	conversationID string,
	limit int,
	before *time.Time,
) ([]models.Message, bool, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, false, err
	}
	if limit <= 0 || limit > 100 {
		limit = DefaultMessagePageSize
	}
	page, err := s.messages.ListPage(ctx, conversationID, limit, before)
	if err != nil {
		return nil, false, err
	}
	return page, len(page) == limit, nil
}

func (s *ChatService) SendMessage(
	ctx context.Context,
	userID string,
	conversationID string,
	content string,
	imageURL *string,
) (*models.Message, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" && (imageURL == nil || strings.TrimSpace(*imageURL) == "") {
		return nil, ErrEmptyMessage
	}

	message, err := s.messages.Create(ctx, conversationID, userID, content, imageURL)
	if err != nil {
		return nil, err
	}
	if err := s.conversations.Touch(ctx, conversationID); err != nil {
		log.Printf("chat: touch conversation %s: %v", conversationID, err)
	}
	s.publish(ctx, realtime.Event{Type: realtime.EventInsert, Message: *message})
	return message, nil
}

// MarkConversationRead stamps every unread message from other participants
// and broadcasts the updated rows so open feeds refresh their receipts.
func (s *ChatService) MarkConversationRead(ctx context.Context, userID, conversationID string) error {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	updated, err := s.messages.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	for i := range updated {
		s.publish(ctx, realtime.Event{Type: realtime.EventUpdate, Message: updated[i]})
	}
	return nil
}

func (s *ChatService) requireParticipant(ctx context.Context, conversationID, userID string) error {
	if userID == "" || conversationID == "" {
		return ErrInvalidInput
	}
	_, err := s.conversations.GetByIDForParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotParticipant
		}
		return err
	}
	return nil
}

// Delivery is best effort. A dropped event costs a refresh, not the message.
func (s *ChatService) publish(ctx context.Context, event realtime.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("chat: publish %s event on %s: %v", event.Type, event.Message.ConversationID, err)
	}
}
