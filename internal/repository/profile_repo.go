package repository

import (
	"context"

	"github.com/idkjulii/PetAlertBack/internal/models"
)

type UpdateProfileInput struct {
	FullName *string
	Phone    *string
}

type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) CreateEmpty(ctx context.Context, userID string, fullName string) error {
	query := `INSERT INTO profiles (user_id, full_name) VALUES ($1, NULLIF($2, ''))`
	_, err := r.db.Exec(ctx, query, userID, fullName)
	return err
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT user_id, full_name, phone, avatar_url, location, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	var profile models.Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.FullName,
		&profile.Phone,
		&profile.AvatarURL,
		&profile.Location,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) Update(
	ctx context.Context,
	userID string,
	input UpdateProfileInput,
) (*models.Profile, error) {
	query := `
		UPDATE profiles
		SET full_name = COALESCE($1, full_name),
			phone = COALESCE($2, phone),
			updated_at = NOW()
		WHERE user_id = $3
		RETURNING user_id, full_name, phone, avatar_url, location, created_at, updated_at
	`
	var profile models.Profile
	err := r.db.QueryRow(ctx, query, input.FullName, input.Phone, userID).Scan(
		&profile.UserID,
		&profile.FullName,
		&profile.Phone,
		&profile.AvatarURL,
		&profile.Location,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) UpdateAvatar(ctx context.Context, userID string, avatarURL string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE profiles
		SET avatar_url = $1, updated_at = NOW()
		WHERE user_id = $2
	`, avatarURL, userID)
	return err
}

// UpdateLocation stores the user's last known position as a WKT point.
func (r *ProfileRepository) UpdateLocation(ctx context.Context, userID string, wktPoint string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE profiles
		SET location = $1, updated_at = NOW()
		WHERE user_id = $2
	`, wktPoint, userID)
	return err
}
