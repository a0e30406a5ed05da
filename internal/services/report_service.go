package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/idkjulii/PetAlertBack/internal/geo"
	"github.com/idkjulii/PetAlertBack/internal/models"
	"github.com/idkjulii/PetAlertBack/internal/repository"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

type CreateReportRequest struct {
	Type        string  `json:"type" validate:"required,oneof=lost found"`
	PetName     *string `json:"pet_name"`
	Species     string  `json:"species" validate:"required"`
	Breed       *string `json:"breed"`
	Color       *string `json:"color"`
	Size        *string `json:"size" validate:"omitempty,oneof=small medium large"`
	Description string  `json:"description" validate:"required"`
	PhotoURL    *string `json:"photo_url" validate:"omitempty,url"`
	Location    any     `json:"location"`
}

type UpdateReportRequest struct {
	PetName     *string `json:"pet_name"`
	Breed       *string `json:"breed"`
	Color       *string `json:"color"`
	Size        *string `json:"size" validate:"omitempty,oneof=small medium large"`
	Description *string `json:"description"`
	PhotoURL    *string `json:"photo_url" validate:"omitempty,url"`
	Location    any     `json:"location"`
}

type reportStore interface {
	Create(ctx context.Context, input repository.CreateReportInput) (*models.Report, error)
	GetByID(ctx context.Context, reportID string) (*models.Report, error)
	ListActive(ctx context.Context) ([]models.Report, error)
	ListByReporter(ctx context.Context, reporterID string) ([]models.Report, error)
	Update(ctx context.Context, reportID string, input repository.UpdateReportInput) (*models.Report, error)
	UpdateStatus(ctx context.Context, reportID string, status string) (*models.Report, error)
}

type ReportService struct {
	reportRepo reportStore
	validate   *validator.Validate
}

func NewReportService(reportRepo reportStore) *ReportService {
	return &ReportService{
		reportRepo: reportRepo,
		validate:   validator.New(),
	}
}

func (s *ReportService) Create(
	ctx context.Context,
	reporterID string,
	req CreateReportRequest,
) (*models.Report, error) {
	if reporterID == "" {
		return nil, ErrForbidden
	}
	req.Description = strings.TrimSpace(req.Description)
	req.Species = strings.ToLower(strings.TrimSpace(req.Species))
	if err := s.validate.Struct(req); err != nil {
		return nil, ErrInvalidInput
	}

	report, err := s.reportRepo.Create(ctx, repository.CreateReportInput{
		Type:        req.Type,
		ReporterID:  reporterID,
		PetName:     req.PetName,
		Species:     req.Species,
		Breed:       req.Breed,
		Color:       req.Color,
		Size:        req.Size,
		Description: req.Description,
		PhotoURL:    req.PhotoURL,
		Location:    normalizeLocation(req.Location),
	})
	if err != nil {
		return nil, err
	}
	resolveCoordinates(report)
	return report, nil
}

func (s *ReportService) Get(ctx context.Context, reportID string) (*models.Report, error) {
	report, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	resolveCoordinates(report)
	return report, nil
}

func (s *ReportService) ListActive(ctx context.Context) ([]models.Report, error) {
	reports, err := s.reportRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for i := range reports {
		resolveCoordinates(&reports[i])
	}
	return reports, nil
}

func (s *ReportService) ListMine(ctx context.Context, reporterID string) ([]models.Report, error) {
	if reporterID == "" {
		return nil, ErrForbidden
	}
	reports, err := s.reportRepo.ListByReporter(ctx, reporterID)
	if err != nil {
		return nil, err
	}
	for i := range reports {
		resolveCoordinates(&reports[i])
	}
	return reports, nil
}

func (s *ReportService) Update(
	ctx context.Context,
	actorID string,
	reportID string,
	req UpdateReportRequest,
) (*models.Report, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, ErrInvalidInput
	}
	if _, err := s.ownedReport(ctx, actorID, reportID); err != nil {
		return nil, err
	}

	report, err := s.reportRepo.Update(ctx, reportID, repository.UpdateReportInput{
		PetName:     req.PetName,
		Breed:       req.Breed,
		Color:       req.Color,
		Size:        req.Size,
		Description: req.Description,
		PhotoURL:    req.PhotoURL,
		Location:    normalizeLocation(req.Location),
	})
	if err != nil {
		return nil, err
	}
	resolveCoordinates(report)
	return report, nil
}

// Resolve closes a report as resolved. Only the reporter may do it.
func (s *ReportService) Resolve(ctx context.Context, actorID string, reportID string) (*models.Report, error) {
	return s.transition(ctx, actorID, reportID, models.ReportStatusResolved)
}

// Cancel withdraws a report. Only the reporter may do it.
func (s *ReportService) Cancel(ctx context.Context, actorID string, reportID string) (*models.Report, error) {
	return s.transition(ctx, actorID, reportID, models.ReportStatusCancelled)
}

func (s *ReportService) transition(ctx context.Context, actorID, reportID, status string) (*models.Report, error) {
	existing, err := s.ownedReport(ctx, actorID, reportID)
	if err != nil {
		return nil, err
	}
	if existing.Status != models.ReportStatusActive {
		return nil, ErrInvalidInput
	}

	report, err := s.reportRepo.UpdateStatus(ctx, reportID, status)
	if err != nil {
		return nil, err
	}
	resolveCoordinates(report)
	return report, nil
}

func (s *ReportService) ownedReport(ctx context.Context, actorID, reportID string) (*models.Report, error) {
	if actorID == "" || reportID == "" {
		return nil, ErrInvalidInput
	}
	report, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if report.ReporterID != actorID {
		return nil, ErrForbidden
	}
	return report, nil
}

// normalizeLocation reduces whatever encoding the client sent to the WKT form
// stored on the row. Unparsable input becomes a null location rather than a
// bogus (0,0) point.
func normalizeLocation(location any) *string {
	if location == nil {
		return nil
	}
	coords := geo.Extract(location)
	if coords == nil {
		log.Printf("report: dropping unparsable location of type %T", location)
		return nil
	}
	wkt := geo.WKTPoint(coords.Latitude, coords.Longitude)
	return &wkt
}

// resolveCoordinates derives latitude/longitude on a report for responses.
// Rows whose stored location cannot be parsed keep nil coordinates.
func resolveCoordinates(report *models.Report) {
	if report == nil || report.Location == nil {
		return
	}
	coords := geo.Extract(*report.Location)
	if coords == nil {
		return
	}
	report.Latitude = &coords.Latitude
	report.Longitude = &coords.Longitude
}
