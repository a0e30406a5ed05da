package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/idkjulii/PetAlertBack/internal/models"
	"github.com/idkjulii/PetAlertBack/internal/services"
)

type reportApplicationService interface {
	Create(ctx context.Context, reporterID string, req services.CreateReportRequest) (*models.Report, error)
	Get(ctx context.Context, reportID string) (*models.Report, error)
	ListActive(ctx context.Context) ([]models.Report, error)
	ListMine(ctx context.Context, reporterID string) ([]models.Report, error)
	Update(ctx context.Context, actorID, reportID string, req services.UpdateReportRequest) (*models.Report, error)
	Resolve(ctx context.Context, actorID, reportID string) (*models.Report, error)
	Cancel(ctx context.Context, actorID, reportID string) (*models.Report, error)
}

type nearbyResolver interface {
	Resolve(ctx context.Context, query services.NearbyQuery) services.NearbyResult
}

type autoMatcher interface {
	AutoMatch(ctx context.Context, reportID string, radiusKm float64, topK int) (*services.MatchResult, error)
}

type reportLabeler interface {
	SaveLabels(ctx context.Context, reportID string, labels []string) error
	UpdatePhoto(ctx context.Context, reportID string, photoURL string) error
}

type ReportHandler struct {
	service ReportServiceSet
}

// ReportServiceSet collects the collaborators behind the report endpoints.
// Vision is optional; when absent, photos go unlabeled and auto-match runs
// on location alone.
type ReportServiceSet struct {
	Reports reportApplicationService
	Nearby  nearbyResolver
	Matcher autoMatcher
	Labels  reportLabeler
	Storage services.PhotoStorage
	Vision  *services.VisionService
}

func NewReportHandler(set ReportServiceSet) *ReportHandler {
	return &ReportHandler{service: set}
}

func (h *ReportHandler) Create(c *fiber.Ctx) error {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req services.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	report, err := h.service.Reports.Create(c.Context(), userID, req)
	if err != nil {
		return mapReportError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"report": report})
}

func (h *ReportHandler) ListActive(c *fiber.Ctx) error {
	reports, err := h.service.Reports.ListActive(c.Context())
	if err != nil {
		return mapReportError(c, err)
	}
	return c.JSON(fiber.Map{"reports": reports})
}

func (h *ReportHandler) ListMine(c *fiber.Ctx) error {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	reports, err := h.service.Reports.ListMine(c.Context(), userID)
	if err != nil {
		return mapReportError(c, err)
	}
	return c.JSON(fiber.Map{"reports": reports})
}

// Nearby answers ?lat=&lng=&radius= with active reports sorted by distance.
// A degraded backend returns an empty list plus the source that served it,
// never an error status.
func (h *ReportHandler) Nearby(c *fiber.Ctx) error {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "lat and lng are required"})
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid coordinates"})
	}
	radius, _ := strconv.ParseFloat(c.Query("radius"), 64)

	result := h.service.Nearby.Resolve(c.Context(), services.NearbyQuery{
		Latitude:     lat,
		Longitude:    lng,
		RadiusMeters: radius,
	})
	if result.Err != nil {
		log.Printf("nearby: degraded response (%s): %v", result.Source, result.Err)
	}

	return c.JSON(fiber.Map{
		"reports": result.Reports,
		"source":  result.Source,
	})
}

func (h *ReportHandler) Get(c *fiber.Ctx) error {
	report, err := h.service.Reports.Get(c.Context(), c.Params("id"))
	if err != nil {
		return mapReportError(c, err)
	}
	return c.JSON(fiber.Map{"report": report})
}

func (h *ReportHandler) Update(c *fiber.Ctx) error {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req services.UpdateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	report, err := h.service.Reports.Update(c.Context(), userID, c.Params("id"), req)
	if err != nil {
		return mapReportError(c, err)
	}
	return c.JSON(fiber.Map{"report": report})
}

func (h *ReportHandler) Resolve(c *fiber.Ctx) error {
	return h.transition(c, h.service.Reports.Resolve)
}

func (h *ReportHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, h.service.Reports.Cancel)
}

func (h *ReportHandler) transition(
	c *fiber.Ctx,
	apply func(ctx context.Context, actorID, reportID string) (*models.Report, error),
) error {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	report, err := apply(c.Context(), userID, c.Params("id"))
	if err != nil {
		return mapReportError(c, err)
	}
	return c.JSON(fiber.Map{"report": report})
}

// UploadPhoto stores the report photo and, when the vision backend is up,
// labels it for auto-matching. Labeling failures never fail the upload.
func (h *ReportHandler) UploadPhoto(c *fiber.Ctx) error {
	userID, err := authenticatedUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	reportID := c.Params("id")
	report, err := h.service.Reports.Get(c.Context(), reportID)
	if err != nil {
		return mapReportError(c, err)
	}
	if report.ReporterID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
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

	photoURL, err := h.service.Storage.UploadPhoto(c.Context(), file, services.FolderReports)
	if err != nil {
		return mapStorageError(c, err)
	}
	if err := h.service.Labels.UpdatePhoto(c.Context(), reportID, photoURL); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save photo"})
	}

	labels := h.labelPhoto(c, reportID, header.Filename, file)

	return c.JSON(fiber.Map{
		"photo_url": photoURL,
		"labels":    labels,
	})
}

func (h *ReportHandler) labelPhoto(c *fiber.Ctx, reportID, filename string, file multipart.File) []string {
	if h.service.Vision == nil {
		return nil
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil
	}

	analysis, err := h.service.Vision.AnalyzeImage(c.Context(), file, filename)
	if err != nil {
		if !errors.Is(err, services.ErrVisionUnavailable) {
			log.Printf("report %s: image analysis failed: %v", reportID, err)
		}
		return nil
	}

	labels := analysis.LabelNames()
	if len(labels) == 0 {
		return nil
	}
	if err := h.service.Labels.SaveLabels(c.Context(), reportID, labels); err != nil {
		log.Printf("report %s: save labels: %v", reportID, err)
	}
	return labels
}

// AutoMatch answers ?radius_km=&top_k= with scored cross-type candidates.
func (h *ReportHandler) AutoMatch(c *fiber.Ctx) error {
	if _, err := authenticatedUserID(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	radiusKm, _ := strconv.ParseFloat(c.Query("radius_km"), 64)
	topK, _ := strconv.Atoi(c.Query("top_k"))

	result, err := h.service.Matcher.AutoMatch(c.Context(), c.Params("id"), radiusKm, topK)
	if err != nil {
		if errors.Is(err, services.ErrReportNotLocatable) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Report has no usable location"})
		}
		return mapReportError(c, err)
	}
	return c.JSON(result)
}

func mapReportError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Report not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process report request"})
	}
}
