package models

import "time"

type Pet struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Species     string    `json:"species"`
	Breed       *string   `json:"breed"`
	Color       *string   `json:"color"`
	Size        *string   `json:"size"`
	Description *string   `json:"description"`
	PhotoURL    *string   `json:"photo_url"`
	IsLost      bool      `json:"is_lost"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
