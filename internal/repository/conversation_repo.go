package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/idkjulii/PetAlertBack/internal/models"
)

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateOrGet returns the single conversation for a report and an unordered
// participant pair, creating it on first use. Callers pass participants in any
// order; the pair is normalized here so the unique index always matches.
func (r *ConversationRepository) CreateOrGet(
	ctx context.Context,
	reportID string,
	participantA string,
	participantB string,
) (*models.Conversation, error) {
	first, second := participantA, participantB
	if second < first {
		first, second = second, first
	}

	query := `
		INSERT INTO conversations (id, report_id, participant_1, participant_2)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (report_id, participant_1, participant_2)
		DO UPDATE SET updated_at = conversations.updated_at
		RETURNING id, report_id, participant_1, participant_2, created_at, updated_at
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, uuid.NewString(), reportID, first, second).Scan(
		&conversation.ID,
		&conversation.ReportID,
		&conversation.Participant1,
		&conversation.Participant2,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *ConversationRepository) GetByIDForParticipant(
	ctx context.Context,
	conversationID string,
	participantID string,
) (*models.Conversation, error) {
	query := `
		SELECT id, report_id, participant_1, participant_2, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND (participant_1 = $2 OR participant_2 = $2)
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, conversationID, participantID).Scan(
		&conversation.ID,
		&conversation.ReportID,
		&conversation.Participant1,
		&conversation.Participant2,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID string,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id,
			c.report_id,
			c.participant_1,
			c.participant_2,
			c.created_at,
			c.updated_at,
			lm.id,
			lm.conversation_id,
			lm.sender_id,
			lm.content,
			lm.image_url,
			lm.created_at,
			lm.read_at,
			COALESCE(uc.unread_count, 0)
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT id, conversation_id, sender_id, content, image_url, created_at, read_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE conversation_id = c.id
			  AND sender_id <> $1
			  AND read_at IS NULL
		) uc ON TRUE
		WHERE c.participant_1 = $1 OR c.participant_2 = $1
		ORDER BY COALESCE(lm.created_at, c.updated_at, c.created_at) DESC, c.id DESC
	`

	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var messageID *string
		var messageConversationID *string
		var messageSenderID *string
		var messageContent *string
		var messageImageURL *string
		var messageCreatedAt *time.Time
		var messageReadAt *time.Time

		if err := rows.Scan(
			&summary.ID,
			&summary.ReportID,
			&summary.Participant1,
			&summary.Participant2,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&messageID,
			&messageConversationID,
			&messageSenderID,
			&messageContent,
			&messageImageURL,
			&messageCreatedAt,
			&messageReadAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		if messageID != nil {
			summary.LastMessage = &models.Message{
				ID:             *messageID,
				ConversationID: *messageConversationID,
				SenderID:       *messageSenderID,
				Content:        *messageContent,
				ImageURL:       messageImageURL,
				CreatedAt:      *messageCreatedAt,
				ReadAt:         messageReadAt,
			}
		}

		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *ConversationRepository) Touch(ctx context.Context, conversationID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET updated_at = NOW()
		WHERE id = $1
	`, conversationID)
	return err
}
