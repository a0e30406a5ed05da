// Package feed maintains the live view of one conversation: a deduplicated,
// time-ordered message set fed by both cursor-paginated fetches and realtime
// change events, with read-receipt tracking and optimistic sends.
package feed

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/idkjulii/PetAlertBack/internal/models"
)

// DefaultPageSize matches the page length of the message history endpoint.
const DefaultPageSize = 40

var (
	ErrNoConversation = errors.New("no active conversation")
	ErrEmptyMessage   = errors.New("message has no content")
)

// Store is the persistence surface the controller pulls from and pushes to.
type Store interface {
	// ListPage returns up to limit messages newest first; a nil cursor
	// starts at the newest message, otherwise only strictly older rows.
	ListPage(ctx context.Context, conversationID string, limit int, cursor *time.Time) ([]models.Message, error)
	Send(ctx context.Context, conversationID string, senderID string, content string, imageURL *string) (*models.Message, error)
	MarkRead(ctx context.Context, conversationID string, readerID string) error
}

// Session yields the identity the controller acts as.
type Session interface {
	UserID() string
}

// Notifier receives conversation-level events for external listeners, such
// as unread badges on a conversation list.
type Notifier interface {
	ConversationUpdated(conversationID string, lastMessage *models.Message)
	ConversationRead(conversationID string)
}

type NopNotifier struct{}

func (NopNotifier) ConversationUpdated(string, *models.Message) {}
func (NopNotifier) ConversationRead(string)                     {}

// Controller owns the message set for a single conversation. The set is only
// ever mutated through its methods; the realtime layer feeds Merge and never
// touches state directly. All mutation happens under one mutex so interleaved
// page fetches and realtime events cannot operate on stale snapshots.
type Controller struct {
	store          Store
	session        Session
	notifier       Notifier
	conversationID string
	pageSize       int

	mu          sync.Mutex
	messages    map[string]models.Message
	cursor      *time.Time
	hasMore     bool
	loaded      bool
	fetching    bool
	sending     bool
	markingRead bool
	lastErr     error
}

func NewController(store Store, session Session, notifier Notifier, conversationID string) *Controller {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Controller{
		store:          store,
		session:        session,
		notifier:       notifier,
		conversationID: conversationID,
		pageSize:       DefaultPageSize,
		messages:       make(map[string]models.Message),
		hasMore:        true,
	}
}

// SetPageSize overrides the fetch page length. Only meaningful before the
// first load.
func (c *Controller) SetPageSize(n int) {
	if n > 0 {
		c.pageSize = n
	}
}

// LoadInitial fetches the newest page and replaces the message set. A second
// concurrent call while a fetch is in flight is a no-op. A failed reload
// keeps whatever was previously loaded.
func (c *Controller) LoadInitial(ctx context.Context) error {
	c.mu.Lock()
	if c.conversationID == "" {
		c.mu.Unlock()
		return ErrNoConversation
	}
	if c.fetching {
		c.mu.Unlock()
		return nil
	}
	c.fetching = true
	c.mu.Unlock()

	page, err := c.store.ListPage(ctx, c.conversationID, c.pageSize, nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false

	if err != nil {
		c.lastErr = err
		return err
	}

	c.lastErr = nil
	c.messages = make(map[string]models.Message, len(page))
	c.cursor = nil
	c.mergeLocked(page)
	c.advanceCursorLocked(page)
	c.hasMore = len(page) == c.pageSize
	c.loaded = true
	return nil
}

// LoadMore fetches the next older page below the current cursor and merges
// it. It is a no-op when everything is loaded or a fetch is already running.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.conversationID == "" {
		c.mu.Unlock()
		return ErrNoConversation
	}
	if !c.hasMore || c.fetching {
		c.mu.Unlock()
		return nil
	}
	c.fetching = true
	cursor := c.cursor
	c.mu.Unlock()

	page, err := c.store.ListPage(ctx, c.conversationID, c.pageSize, cursor)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false

	if err != nil {
		c.lastErr = err
		return err
	}

	c.lastErr = nil
	c.mergeLocked(page)
	c.advanceCursorLocked(page)
	c.hasMore = len(page) == c.pageSize
	return nil
}

// Merge inserts or replaces messages by id. A later version of a message
// always supersedes the earlier one, and merging the same batch twice leaves
// the state unchanged. This is the single entry point for realtime events,
// page fetches, and send echoes alike.
func (c *Controller) Merge(incoming []models.Message) {
	if len(incoming) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergeLocked(incoming)
}

func (c *Controller) mergeLocked(incoming []models.Message) {
	for _, message := range incoming {
		if message.ID == "" {
			continue
		}
		c.messages[message.ID] = message
	}
}

// advanceCursorLocked moves the pagination cursor to the oldest message of a
// newest-first page. An empty page leaves the cursor where it was.
func (c *Controller) advanceCursorLocked(page []models.Message) {
	if len(page) == 0 {
		return
	}
	oldest := page[len(page)-1].CreatedAt
	if c.cursor == nil || oldest.Before(*c.cursor) {
		cursor := oldest
		c.cursor = &cursor
	}
}

// Send persists a message and merges the server echo. Both content and image
// empty is a validation error surfaced before any network call. A failed
// send leaves previously merged messages untouched.
func (c *Controller) Send(ctx context.Context, content string, imageURL *string) (*models.Message, error) {
	userID := c.session.UserID()
	if c.conversationID == "" || userID == "" {
		return nil, ErrNoConversation
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" && (imageURL == nil || *imageURL == "") {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	c.sending = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}()

	message, err := c.store.Send(ctx, c.conversationID, userID, trimmed, imageURL)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return nil, err
	}

	if message != nil {
		c.Merge([]models.Message{*message})
	}
	c.notifier.ConversationUpdated(c.conversationID, message)
	return message, nil
}

// MarkAsRead stamps the other participant's unread messages. Without unread
// messages no call is issued at all; a call already in flight suppresses the
// next one. The stamp is applied locally without waiting for the server, and
// the eventual realtime update for the same rows merges idempotently on top.
// Failures are logged and dropped.
func (c *Controller) MarkAsRead(ctx context.Context) {
	userID := c.session.UserID()
	if c.conversationID == "" || userID == "" {
		return
	}

	c.mu.Lock()
	if c.markingRead || !c.hasUnreadLocked(userID) {
		c.mu.Unlock()
		return
	}
	c.markingRead = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.markingRead = false
		c.mu.Unlock()
	}()

	if err := c.store.MarkRead(ctx, c.conversationID, userID); err != nil {
		log.Printf("feed: mark conversation %s read: %v", c.conversationID, err)
		return
	}

	now := time.Now().UTC()
	c.mu.Lock()
	for id, message := range c.messages {
		if message.SenderID != userID && message.ReadAt == nil {
			stamped := now
			message.ReadAt = &stamped
			c.messages[id] = message
		}
	}
	c.mu.Unlock()

	c.notifier.ConversationRead(c.conversationID)
}

func (c *Controller) hasUnreadLocked(userID string) bool {
	for _, message := range c.messages {
		if message.SenderID != userID && message.ReadAt == nil {
			return true
		}
	}
	return false
}

// Messages returns the display view: every known message sorted by
// created_at ascending, ties broken by id.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Message, 0, len(c.messages))
	for _, message := range c.messages {
		out = append(out, message)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (c *Controller) ConversationID() string {
	return c.conversationID
}

func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// LastError reports the most recent load or send failure, cleared by the
// next successful load.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
