package handlers

import (
	"strconv"
	"time"

	"github.com/idkjulii/PetAlertBack/internal/models"
)

const maxPageLimit = 100

// CursorMeta describes keyset pagination over a message feed. NextCursor is
// the created_at of the oldest message in the page, absent on the last page.
type CursorMeta struct {
	Limit      int     `json:"limit"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor,omitempty"`
}

func buildCursorMeta(page []models.Message, limit int, hasMore bool) CursorMeta {
	meta := CursorMeta{Limit: limit, HasMore: hasMore}
	if hasMore && len(page) > 0 {
		oldest := page[len(page)-1].CreatedAt.UTC().Format(time.RFC3339Nano)
		meta.NextCursor = &oldest
	}
	return meta
}

func parseCursor(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	cursor, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > maxPageLimit {
		return maxPageLimit
	}
	return value
}
