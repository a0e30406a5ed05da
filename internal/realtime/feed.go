// Package realtime carries per-conversation message change events between the
// chat service and live subscribers over Redis pub/sub. Each conversation has
// its own channel; an event is the full message row plus whether it was an
// insert or an update, so consumers can merge it idempotently by id.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/idkjulii/PetAlertBack/internal/models"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

type Event struct {
	Type    EventType      `json:"type"`
	Message models.Message `json:"message"`
}

type Feed struct {
	client *redis.Client
}

func NewFeed(client *redis.Client) *Feed {
	return &Feed{client: client}
}

func channelName(conversationID string) string {
	return "conversation:" + conversationID
}

func (f *Feed) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}
	if err := f.client.Publish(ctx, channelName(event.Message.ConversationID), payload).Err(); err != nil {
		return fmt.Errorf("publish realtime event: %w", err)
	}
	return nil
}

// Subscribe opens a change feed for one conversation. The returned
// subscription delivers events until Close is called; Close is the caller's
// responsibility and is what releases the underlying Redis subscription.
func (f *Feed) Subscribe(ctx context.Context, conversationID string) *Subscription {
	pubsub := f.client.Subscribe(ctx, channelName(conversationID))
	sub := &Subscription{
		pubsub: pubsub,
		events: make(chan Event, 16),
	}
	go sub.pump()
	return sub
}

type Subscription struct {
	pubsub *redis.PubSub
	events chan Event
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

func (s *Subscription) pump() {
	defer close(s.events)
	for msg := range s.pubsub.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("realtime: dropping malformed event on %s: %v", msg.Channel, err)
			continue
		}
		select {
		case s.events <- event:
		default:
			// Receiver stopped draining, likely mid-teardown after a
			// conversation switch. Dropping keeps the pump from leaking.
			log.Printf("realtime: dropping event on %s: subscriber not draining", msg.Channel)
		}
	}
}
