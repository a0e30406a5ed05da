package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/idkjulii/PetAlertBack/internal/models"
	"github.com/idkjulii/PetAlertBack/internal/repository"
	"github.com/idkjulii/PetAlertBack/internal/services"
)

type PetHandler struct {
	petRepo *repository.PetRepository
	storage services.PhotoStorage
}

func NewPetHandler(petRepo *repository.PetRepository, storage services.PhotoStorage) *PetHandler {
	return &PetHandler{
		petRepo: petRepo,
		storage: storage,
	}
}

type createPetRequest struct {
	Name        string  `json:"name"`
	Species     string  `json:"species"`
	Breed       *string `json:"breed"`
	Color       *string `json:"color"`
	Size        *string `json:"size"`
	Description *string `json:"description"`
	PhotoURL    *string `json:"photo_url"`
}

type updatePetRequest struct {
	Name        *string `json:"name"`
	Species     *string `json:"species"`
	Breed       *string `json:"breed"`
	Color       *string `json:"color"`
	Size        *string `json:"size"`
	Description *string `json:"description"`
	PhotoURL    *string `json:"photo_url"`
}

type setLostRequest struct {
	IsLost bool `json:"is_lost"`
}

func (h *PetHandler) Create(c *fiber.Ctx) error {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createPetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Species = strings.ToLower(strings.TrimSpace(req.Species))
	if req.Name == "" || req.Species == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name and species are required"})
	}

	pet, err := h.petRepo.Create(c.Context(), repository.CreatePetInput{
		OwnerID:     userID,
		Name:        req.Name,
		Species:     req.Species,
		Breed:       req.Breed,
		Color:       req.Color,
		Size:        req.Size,
		Description: req.Description,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create pet"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"pet": pet})
}

func (h *PetHandler) ListMine(c *fiber.Ctx) error {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	pets, err := h.petRepo.ListByOwner(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list pets"})
	}

	return c.JSON(fiber.Map{"pets": pets})
}

func (h *PetHandler) Get(c *fiber.Ctx) error {
	pet, statusErr := h.ownedPet(c)
	if statusErr != nil {
		return statusErr
	}
	return c.JSON(fiber.Map{"pet": pet})
}

func (h *PetHandler) Update(c *fiber.Ctx) error {
	pet, statusErr := h.ownedPet(c)
	if statusErr != nil {
		return statusErr
	}

	var req updatePetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updated, err := h.petRepo.Update(c.Context(), pet.ID, repository.UpdatePetInput{
		Name:        req.Name,
		Species:     req.Species,
		Breed:       req.Breed,
		Color:       req.Color,
		Size:        req.Size,
		Description: req.Description,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update pet"})
	}

	return c.JSON(fiber.Map{"pet": updated})
}

// SetLost flips the lost flag on a pet. The mobile app uses it as the
// shortcut that pre-fills a lost report from the pet's stored details.
func (h *PetHandler) SetLost(c *fiber.Ctx) error {
	pet, statusErr := h.ownedPet(c)
	if statusErr != nil {
		return statusErr
	}

	var req setLostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updated, err := h.petRepo.SetLost(c.Context(), pet.ID, req.IsLost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update pet"})
	}

	return c.JSON(fiber.Map{"pet": updated})
}

func (h *PetHandler) Delete(c *fiber.Ctx) error {
	pet, statusErr := h.ownedPet(c)
	if statusErr != nil {
		return statusErr
	}

	if err := h.petRepo.Delete(c.Context(), pet.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete pet"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PetHandler) UploadPhoto(c *fiber.Ctx) error {
	pet, statusErr := h.ownedPet(c)
	if statusErr != nil {
		return statusErr
	}

	header, err := c.FormFile("photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing photo file"})
	}
	file, err := header.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unreadable photo file"})
	}
	defer file.Close()

	photoURL, err := h.storage.UploadPhoto(c.Context(), file, services.FolderPets)
	if err != nil {
		return mapStorageError(c, err)
	}

	updated, err := h.petRepo.Update(c.Context(), pet.ID, repository.UpdatePetInput{PhotoURL: &photoURL})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save photo"})
	}

	return c.JSON(fiber.Map{"pet": updated})
}

// ownedPet loads the pet in the route and enforces that the caller owns it.
// The returned error, when non-nil, is the already-written fiber response.
func (h *PetHandler) ownedPet(c *fiber.Ctx) (*models.Pet, error) {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	petID := c.Params("id")
	if petID == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pet id"})
	}

	pet, err := h.petRepo.GetByID(c.Context(), petID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Pet not found"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch pet"})
	}
	if pet.OwnerID != userID {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	return pet, nil
}
