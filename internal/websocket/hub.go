package chatws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/idkjulii/PetAlertBack/internal/feed"
	"github.com/idkjulii/PetAlertBack/internal/models"
	"github.com/idkjulii/PetAlertBack/internal/realtime"
)

// Hub tracks live websocket clients per user. Message fan-out between users
// rides on the Redis change feed, so the hub only does connection accounting
// and shutdown.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.userID] = set
	}
	set[client] = struct{}{}
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := set[client]; exists {
		delete(set, client)
		close(client.send)
	}
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

// CloseAll tears down every client session, used on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for client := range set {
			client.manager.Close()
			close(client.send)
			_ = client.conn.Close()
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
}

type chatService interface {
	ListMessages(ctx context.Context, userID, conversationID string, limit int, before *time.Time) ([]models.Message, bool, error)
	SendMessage(ctx context.Context, userID, conversationID, content string, imageURL *string) (*models.Message, error)
	MarkConversationRead(ctx context.Context, userID, conversationID string) error
}

// Client is one websocket connection. It owns a feed manager whose open
// conversation follows the client's "open" commands; at most one
// conversation feed is live per connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  string
	send    chan []byte
	manager *feed.Manager
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string, chat chatService, rt *realtime.Feed) *Client {
	client := &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
	client.manager = feed.NewManager(
		feedStore{chat: chat, userID: userID},
		session{userID: userID},
		clientNotifier{client: client},
		realtimeSource{feed: rt},
	)
	client.manager.OnChange(func(controller *feed.Controller) {
		client.sendSnapshot(controller)
	})
	return client
}

type command struct {
	Type           string  `json:"type"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Content        string  `json:"content,omitempty"`
	ImageURL       *string `json:"image_url,omitempty"`
}

type frame struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Messages       []models.Message `json:"messages,omitempty"`
	HasMore        *bool            `json:"has_more,omitempty"`
	Message        *models.Message  `json:"message,omitempty"`
	Error          string           `json:"error,omitempty"`
}

func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.manager.Close()
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			c.sendError("invalid payload")
			continue
		}

		switch cmd.Type {
		case "open":
			c.handleOpen(ctx, cmd.ConversationID)
		case "send":
			c.handleSend(ctx, cmd)
		case "load_more":
			c.handleLoadMore(ctx)
		case "mark_read":
			c.handleMarkRead(ctx)
		default:
			c.sendError("unsupported command")
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) handleOpen(ctx context.Context, conversationID string) {
	if conversationID == "" {
		c.sendError("missing conversation id")
		return
	}
	controller, err := c.manager.Open(ctx, conversationID)
	if err != nil {
		c.sendError("failed to open conversation")
		return
	}
	c.sendSnapshot(controller)
}

func (c *Client) handleSend(ctx context.Context, cmd command) {
	controller := c.manager.Controller()
	if controller == nil {
		c.sendError("no open conversation")
		return
	}
	message, err := controller.Send(ctx, cmd.Content, cmd.ImageURL)
	if err != nil {
		c.sendError("failed to send message")
		return
	}
	c.writeFrame(frame{
		Type:           "message:sent",
		ConversationID: controller.ConversationID(),
		Message:        message,
	})
	c.sendSnapshot(controller)
}

func (c *Client) handleLoadMore(ctx context.Context) {
	controller := c.manager.Controller()
	if controller == nil {
		c.sendError("no open conversation")
		return
	}
	if err := controller.LoadMore(ctx); err != nil {
		c.sendError("failed to load older messages")
		return
	}
	c.sendSnapshot(controller)
}

func (c *Client) handleMarkRead(ctx context.Context) {
	controller := c.manager.Controller()
	if controller == nil {
		c.sendError("no open conversation")
		return
	}
	controller.MarkAsRead(ctx)
	c.sendSnapshot(controller)
}

func (c *Client) sendSnapshot(controller *feed.Controller) {
	hasMore := controller.HasMore()
	c.writeFrame(frame{
		Type:           "snapshot",
		ConversationID: controller.ConversationID(),
		Messages:       controller.Messages(),
		HasMore:        &hasMore,
	})
}

func (c *Client) sendError(message string) {
	c.writeFrame(frame{Type: "error", Error: message})
}

func (c *Client) writeFrame(f frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		log.Printf("websocket: encode frame: %v", err)
		return
	}
	select {
	case c.send <- payload:
	default:
		// Slow consumer. Dropping the frame is better than blocking the
		// feed; the next snapshot carries the full state anyway.
	}
}

// feedStore binds the chat service to one user so the feed controller can
// stay ignorant of authorization.
type feedStore struct {
	chat   chatService
	userID string
}

func (s feedStore) ListPage(ctx context.Context, conversationID string, limit int, cursor *time.Time) ([]models.Message, error) {
	page, _, err := s.chat.ListMessages(ctx, s.userID, conversationID, limit, cursor)
	return page, err
}

func (s feedStore) Send(ctx context.Context, conversationID, senderID, content string, imageURL *string) (*models.Message, error) {
	return s.chat.SendMessage(ctx, senderID, conversationID, content, imageURL)
}

func (s feedStore) MarkRead(ctx context.Context, conversationID, readerID string) error {
	return s.chat.MarkConversationRead(ctx, readerID, conversationID)
}

type session struct {
	userID string
}

func (s session) UserID() string { return s.userID }

type realtimeSource struct {
	feed *realtime.Feed
}

func (r realtimeSource) Subscribe(ctx context.Context, conversationID string) feed.Subscription {
	return r.feed.Subscribe(ctx, conversationID)
}

// clientNotifier maps feed-level signals to outbound frames.
type clientNotifier struct {
	client *Client
}

func (n clientNotifier) ConversationUpdated(conversationID string, last *models.Message) {
	n.client.writeFrame(frame{
		Type:           "conversation:updated",
		ConversationID: conversationID,
		Message:        last,
	})
}

func (n clientNotifier) ConversationRead(conversationID string) {
	n.client.writeFrame(frame{
		Type:           "conversation:read",
		ConversationID: conversationID,
	})
}
