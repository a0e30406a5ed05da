package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/idkjulii/PetAlertBack/internal/models"
)

type CreatePetInput struct {
	OwnerID     string
	Name        string
	Species     string
	Breed       *string
	Color       *string
	Size        *string
	Description *string
	PhotoURL    *string
}

type UpdatePetInput struct {
	Name        *string
	Species     *string
	Breed       *string
	Color       *string
	Size        *string
	Description *string
	PhotoURL    *string
}

type PetRepository struct {
	db DBTX
}

func NewPetRepository(db DBTX) *PetRepository {
	return &PetRepository{db: db}
}

const petColumns = `id, owner_id, name, species, breed, color, size, description, photo_url, is_lost, created_at, updated_at`

func (r *PetRepository) Create(ctx context.Context, input CreatePetInput) (*models.Pet, error) {
	query := `
		INSERT INTO pets (id, owner_id, name, species, breed, color, size, description, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + petColumns

	return r.scanPet(r.db.QueryRow(
		ctx,
		query,
		uuid.NewString(),
		input.OwnerID,
		input.Name,
		input.Species,
		input.Breed,
		input.Color,
		input.Size,
		input.Description,
		input.PhotoURL,
	))
}

func (r *PetRepository) GetByID(ctx context.Context, petID string) (*models.Pet, error) {
	query := `SELECT ` + petColumns + ` FROM pets WHERE id = $1`
	return r.scanPet(r.db.QueryRow(ctx, query, petID))
}

func (r *PetRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Pet, error) {
	query := `
		SELECT ` + petColumns + `
		FROM pets
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pets := make([]models.Pet, 0)
	for rows.Next() {
		var pet models.Pet
		if err := rows.Scan(
			&pet.ID,
			&pet.OwnerID,
			&pet.Name,
			&pet.Species,
			&pet.Breed,
			&pet.Color,
			&pet.Size,
			&pet.Description,
			&pet.PhotoURL,
			&pet.IsLost,
			&pet.CreatedAt,
			&pet.UpdatedAt,
		); err != nil {
			return nil, err
		}
		pets = append(pets, pet)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pets, nil
}

func (r *PetRepository) Update(ctx context.Context, petID string, input UpdatePetInput) (*models.Pet, error) {
	query := `
		UPDATE pets
		SET name = COALESCE($1, name),
			species = COALESCE($2, species),
			breed = COALESCE($3, breed),
			color = COALESCE($4, color),
			size = COALESCE($5, size),
			description = COALESCE($6, description),
			photo_url = COALESCE($7, photo_url),
			updated_at = NOW()
		WHERE id = $8
		RETURNING ` + petColumns

	return r.scanPet(r.db.QueryRow(
		ctx,
		query,
		input.Name,
		input.Species,
		input.Breed,
		input.Color,
		input.Size,
		input.Description,
		input.PhotoURL,
		petID,
	))
}

func (r *PetRepository) SetLost(ctx context.Context, petID string, isLost bool) (*models.Pet, error) {
	query := `
		UPDATE pets
		SET is_lost = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + petColumns
	return r.scanPet(r.db.QueryRow(ctx, query, isLost, petID))
}

func (r *PetRepository) Delete(ctx context.Context, petID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM pets WHERE id = $1`, petID)
	return err
}

func (r *PetRepository) scanPet(row interface{ Scan(dest ...any) error }) (*models.Pet, error) {
	var pet models.Pet
	err := row.Scan(
		&pet.ID,
		&pet.OwnerID,
		&pet.Name,
		&pet.Species,
		&pet.Breed,
		&pet.Color,
		&pet.Size,
		&pet.Description,
		&pet.PhotoURL,
		&pet.IsLost,
		&pet.CreatedAt,
		&pet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pet, nil
}
