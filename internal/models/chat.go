package models

import "time"

// Conversation links the two participants discussing a report. The pair is
// stored in normalized order (participant_1 < participant_2) so the same two
// users on the same report always map to a single row.
type Conversation struct {
	ID           string    `json:"id"`
	ReportID     string    `json:"report_id"`
	Participant1 string    `json:"participant_1"`
	Participant2 string    `json:"participant_2"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Other returns the participant that is not the given user.
func (c *Conversation) Other(userID string) string {
	if c.Participant1 == userID {
		return c.Participant2
	}
	return c.Participant1
}

type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	ImageURL       *string    `json:"image_url"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at"`
}

type ConversationSummary struct {
	Conversation
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}
