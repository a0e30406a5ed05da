package feed

import (
	"context"
	"sync"

	"github.com/idkjulii/PetAlertBack/internal/models"
	"github.com/idkjulii/PetAlertBack/internal/realtime"
)

// Subscription is one open change feed. The concrete implementation lives in
// internal/realtime; tests substitute their own.
type Subscription interface {
	Events() <-chan realtime.Event
	Close() error
}

// Realtime opens per-conversation change feeds.
type Realtime interface {
	Subscribe(ctx context.Context, conversationID string) Subscription
}

// Manager binds controllers to realtime subscriptions, holding at most one
// live channel at a time. Opening a conversation tears down the previous
// channel before the new one subscribes; events still in flight for the
// abandoned conversation are dropped by a generation check.
type Manager struct {
	store    Store
	session  Session
	notifier Notifier
	realtime Realtime
	pageSize int
	onChange func(*Controller)

	mu         sync.Mutex
	generation int
	controller *Controller
	sub        Subscription
}

func NewManager(store Store, session Session, notifier Notifier, rt Realtime) *Manager {
	return &Manager{
		store:    store,
		session:  session,
		notifier: notifier,
		realtime: rt,
		pageSize: DefaultPageSize,
	}
}

// OnChange registers a callback invoked after a routed realtime event has
// been merged. Set it before the first Open.
func (m *Manager) OnChange(fn func(*Controller)) {
	m.onChange = fn
}

func (m *Manager) SetPageSize(n int) {
	if n > 0 {
		m.pageSize = n
	}
}

// Open switches the manager to a conversation: closes the previous channel,
// subscribes to the new one, then loads the first page. The controller is
// returned even when the initial load fails, carrying the error, so callers
// can retry without resubscribing.
func (m *Manager) Open(ctx context.Context, conversationID string) (*Controller, error) {
	if conversationID == "" {
		return nil, ErrNoConversation
	}

	m.mu.Lock()
	m.closeLocked()
	m.generation++
	generation := m.generation

	controller := NewController(m.store, m.session, m.notifier, conversationID)
	controller.SetPageSize(m.pageSize)
	m.controller = controller

	// Subscribe before the initial fetch so nothing published in between
	// is lost; the merge dedupes whatever arrives twice.
	sub := m.realtime.Subscribe(ctx, conversationID)
	m.sub = sub
	m.mu.Unlock()

	go m.route(ctx, generation, controller, sub)

	err := controller.LoadInitial(ctx)
	return controller, err
}

func (m *Manager) route(ctx context.Context, generation int, controller *Controller, sub Subscription) {
	for event := range sub.Events() {
		if !m.current(generation) {
			return
		}

		controller.Merge([]models.Message{event.Message})
		if event.Type == realtime.EventInsert && event.Message.SenderID != m.session.UserID() {
			controller.MarkAsRead(ctx)
		}

		if m.onChange != nil && m.current(generation) {
			m.onChange(controller)
		}
	}
}

func (m *Manager) current(generation int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation == generation
}

// Controller returns the controller for the currently open conversation.
func (m *Manager) Controller() *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.controller
}

// Close tears down the live channel. Safe to call repeatedly.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.closeLocked()
	m.controller = nil
}

func (m *Manager) closeLocked() {
	if m.sub != nil {
		_ = m.sub.Close()
		m.sub = nil
	}
}
