package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/idkjulii/PetAlertBack/internal/models"
	"github.com/idkjulii/PetAlertBack/internal/repository"
)

type stubReportRepo struct {
	reports map[string]*models.Report

	createInput *repository.CreateReportInput
	updateInput *repository.UpdateReportInput
	statusSet   string
	createErr   error
}

func newStubReportRepo() *stubReportRepo {
	return &stubReportRepo{reports: make(map[string]*models.Report)}
}

func (r *stubReportRepo) Create(_ context.Context, input repository.CreateReportInput) (*models.Report, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.createInput = &input
	report := &models.Report{
		ID:          "report-1",
		Type:        input.Type,
		ReporterID:  input.ReporterID,
		Species:     input.Species,
		Description: input.Description,
		Location:    input.Location,
		Status:      models.ReportStatusActive,
	}
	r.reports[report.ID] = report
	return report, nil
}

func (r *stubReportRepo) GetByID(_ context.Context, reportID string) (*models.Report, error) {
	report, ok := r.reports[reportID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *report
	return &copied, nil
}

func (r *stubReportRepo) ListActive(context.Context) ([]models.Report, error) {
	var out []models.Report
	for _, report := range r.reports {
		if report.Status == models.ReportStatusActive {
			out = append(out, *report)
		}
	}
	return out, nil
}

func (r *stubReportRepo) ListByReporter(_ context.Context, reporterID string) ([]models.Report, error) {
	var out []models.Report
	for _, report := range r.reports {
		if report.ReporterID == reporterID {
			out = append(out, *report)
		}
	}
	return out, nil
}

func (r *stubReportRepo) Update(_ context.Context, reportID string, input repository.UpdateReportInput) (*models.Report, error) {
	report, ok := r.reports[reportID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	r.updateInput = &input
	if input.Description != nil {
		report.Description = *input.Description
	}
	if input.Location != nil {
		report.Location = input.Location
	}
	copied := *report
	return &copied, nil
}

func (r *stubReportRepo) UpdateStatus(_ context.Context, reportID string, status string) (*models.Report, error) {
	report, ok := r.reports[reportID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	report.Status = status
	r.statusSet = status
	copied := *report
	return &copied, nil
}

func TestCreateReportNormalizesLocationToWKT(t *testing.T) {
	repo := newStubReportRepo()
	svc := NewReportService(repo)

	report, err := svc.Create(context.Background(), "user-1", CreateReportRequest{
		Type:        "lost",
		Species:     " Dog ",
		Description: "brown labrador, red collar",
		Location:    map[string]any{"type": "Point", "coordinates": []any{-58.38, -34.6}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if repo.createInput.Location == nil {
		t.Fatal("expected a stored location")
	}
	if got, want := *repo.createInput.Location, "POINT(-58.38 -34.6)"; got != want {
		t.Fatalf("stored location = %q, want %q", got, want)
	}
	if repo.createInput.Species != "dog" {
		t.Fatalf("species = %q, want normalized %q", repo.createInput.Species, "dog")
	}
	if report.Latitude == nil || *report.Latitude != -34.6 {
		t.Fatalf("latitude not derived: %v", report.Latitude)
	}
}

func TestCreateReportDropsUnparsableLocation(t *testing.T) {
	repo := newStubReportRepo()
	svc := NewReportService(repo)

	report, err := svc.Create(context.Background(), "user-1", CreateReportRequest{
		Type:        "found",
		Species:     "cat",
		Description: "grey tabby near the park",
		Location:    "not a point at all",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if repo.createInput.Location != nil {
		t.Fatalf("expected nil stored location, got %q", *repo.createInput.Location)
	}
	if report.Latitude != nil || report.Longitude != nil {
		t.Fatal("expected nil coordinates for a report without location")
	}
}

func TestCreateReportValidation(t *testing.T) {
	repo := newStubReportRepo()
	svc := NewReportService(repo)

	cases := []struct {
		name string
		req  CreateReportRequest
	}{
		{"bad type", CreateReportRequest{Type: "stolen", Species: "dog", Description: "d"}},
		{"missing species", CreateReportRequest{Type: "lost", Description: "d"}},
		{"missing description", CreateReportRequest{Type: "lost", Species: "dog"}},
		{"bad size", CreateReportRequest{Type: "lost", Species: "dog", Description: "d", Size: strPtr("huge")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), "user-1", tc.req); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}

	if _, err := svc.Create(context.Background(), "", CreateReportRequest{
		Type: "lost", Species: "dog", Description: "d",
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden for missing reporter", err)
	}
}

func TestGetReportNotFound(t *testing.T) {
	svc := NewReportService(newStubReportRepo())

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateReportRequiresOwnership(t *testing.T) {
	repo := newStubReportRepo()
	repo.reports["report-1"] = &models.Report{
		ID:         "report-1",
		ReporterID: "owner",
		Status:     models.ReportStatusActive,
	}
	svc := NewReportService(repo)

	desc := "updated"
	if _, err := svc.Update(context.Background(), "intruder", "report-1", UpdateReportRequest{
		Description: &desc,
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	report, err := svc.Update(context.Background(), "owner", "report-1", UpdateReportRequest{
		Description: &desc,
	})
	if err != nil {
		t.Fatalf("Update by owner: %v", err)
	}
	if report.Description != "updated" {
		t.Fatalf("description = %q", report.Description)
	}
}

func TestResolveAndCancelTransitions(t *testing.T) {
	repo := newStubReportRepo()
	repo.reports["report-1"] = &models.Report{
		ID:         "report-1",
		ReporterID: "owner",
		Status:     models.ReportStatusActive,
	}
	svc := NewReportService(repo)

	report, err := svc.Resolve(context.Background(), "owner", "report-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if report.Status != models.ReportStatusResolved {
		t.Fatalf("status = %q", report.Status)
	}

	// already resolved, no further transition
	if _, err := svc.Cancel(context.Background(), "owner", "report-1"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput for closed report", err)
	}

	if _, err := svc.Resolve(context.Background(), "someone-else", "report-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func strPtr(s string) *string { return &s }
