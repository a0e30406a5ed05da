package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/idkjulii/PetAlertBack/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, conversation_id, sender_id, content, image_url, created_at, read_at`

func (r *MessageRepository) Create(
	ctx context.Context,
	conversationID string,
	senderID string,
	content string,
	imageURL *string,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, content, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + messageColumns

	var message models.Message
	err := r.db.QueryRow(ctx, query, uuid.NewString(), conversationID, senderID, content, imageURL).Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.Content,
		&message.ImageURL,
		&message.CreatedAt,
		&message.ReadAt,
	)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// ListPage fetches up to limit messages, newest first. A nil cursor starts at
// the newest message; otherwise only rows strictly older than the cursor are
// returned, keyset-paged on (created_at, id).
func (r *MessageRepository) ListPage(
	ctx context.Context,
	conversationID string,
	limit int,
	cursor *time.Time,
) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, conversationID, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0, limit)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.SenderID,
			&message.Content,
			&message.ImageURL,
			&message.CreatedAt,
			&message.ReadAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkConversationRead stamps read_at on every unread message sent by anyone
// other than the reader, and returns the updated rows so callers can fan the
// change out to realtime subscribers. Already-read rows are untouched, which
// keeps the operation idempotent.
func (r *MessageRepository) MarkConversationRead(
	ctx context.Context,
	conversationID string,
	readerID string,
) ([]models.Message, error) {
	query := `
		UPDATE messages
		SET read_at = NOW()
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND read_at IS NULL
		RETURNING ` + messageColumns

	rows, err := r.db.Query(ctx, query, conversationID, readerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updated := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.SenderID,
			&message.Content,
			&message.ImageURL,
			&message.CreatedAt,
			&message.ReadAt,
		); err != nil {
			return nil, err
		}
		updated = append(updated, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return updated, nil
}
