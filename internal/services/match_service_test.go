package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/idkjulii/PetAlertBack/internal/geo"
	"github.com/idkjulii/PetAlertBack/internal/models"
)

type stubMatchRepo struct {
	base       *models.Report
	candidates []models.Report
	queried    struct {
		reportType string
		species    string
	}
}

func (r *stubMatchRepo) GetByID(_ context.Context, reportID string) (*models.Report, error) {
	if r.base != nil && r.base.ID == reportID {
		copied := *r.base
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *stubMatchRepo) ListMatchCandidates(_ context.Context, reportType, species string) ([]models.Report, error) {
	r.queried.reportType = reportType
	r.queried.species = species
	return r.candidates, nil
}

func wktAt(lat, lon float64) *string {
	s := geo.WKTPoint(lat, lon)
	return &s
}

func lostDogReport(id string, labels ...string) *models.Report {
	return &models.Report{
		ID:       id,
		Type:     models.ReportTypeLost,
		Species:  "dog",
		Labels:   labels,
		Location: wktAt(-34.6, -58.38),
		Status:   models.ReportStatusActive,
	}
}

func TestAutoMatchScoresLabelOverlapOverDistance(t *testing.T) {
	repo := &stubMatchRepo{
		base: lostDogReport("base", "dog", "labrador", "brown"),
		candidates: []models.Report{
			{
				ID: "close-no-overlap", Type: models.ReportTypeFound, Species: "dog",
				Labels:   []string{"cat"},
				Location: wktAt(-34.601, -58.38),
			},
			{
				ID: "far-strong-overlap", Type: models.ReportTypeFound, Species: "dog",
				Labels:   []string{"dog", "labrador", "brown"},
				Location: wktAt(-34.65, -58.38),
			},
		},
	}
	svc := NewMatchService(repo)

	result, err := svc.AutoMatch(context.Background(), "base", 10, 5)
	if err != nil {
		t.Fatalf("AutoMatch: %v", err)
	}
	if repo.queried.reportType != models.ReportTypeFound || repo.queried.species != "dog" {
		t.Fatalf("candidate query = %+v", repo.queried)
	}
	if len(result.Matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(result.Matches))
	}
	if result.Matches[0].Report.ID != "far-strong-overlap" {
		t.Fatalf("best match = %q, label overlap should outweigh distance", result.Matches[0].Report.ID)
	}
	if result.Matches[0].LabelOverlap != 3 {
		t.Fatalf("overlap = %d, want 3", result.Matches[0].LabelOverlap)
	}
}

func TestAutoMatchHonorsRadiusAndTopK(t *testing.T) {
	repo := &stubMatchRepo{base: lostDogReport("base", "dog")}
	// one candidate outside the radius, four inside
	repo.candidates = append(repo.candidates, models.Report{
		ID: "too-far", Type: models.ReportTypeFound, Species: "dog",
		Labels:   []string{"dog"},
		Location: wktAt(-35.6, -58.38), // ~111 km south
	})
	for _, id := range []string{"a", "b", "c", "d"} {
		repo.candidates = append(repo.candidates, models.Report{
			ID: id, Type: models.ReportTypeFound, Species: "dog",
			Labels:   []string{"dog"},
			Location: wktAt(-34.61, -58.38),
		})
	}
	svc := NewMatchService(repo)

	result, err := svc.AutoMatch(context.Background(), "base", 10, 3)
	if err != nil {
		t.Fatalf("AutoMatch: %v", err)
	}
	if result.TotalCandidates != 4 {
		t.Fatalf("total candidates = %d, want 4 (radius must exclude the far one)", result.TotalCandidates)
	}
	if len(result.Matches) != 3 {
		t.Fatalf("matches = %d, want top 3", len(result.Matches))
	}
}

func TestAutoMatchSkipsUnlocatableCandidates(t *testing.T) {
	repo := &stubMatchRepo{base: lostDogReport("base", "dog")}
	broken := "POINT(not numbers)"
	repo.candidates = []models.Report{
		{ID: "no-location", Type: models.ReportTypeFound, Species: "dog"},
		{ID: "broken", Type: models.ReportTypeFound, Species: "dog", Location: &broken},
		{ID: "good", Type: models.ReportTypeFound, Species: "dog", Labels: []string{"dog"}, Location: wktAt(-34.61, -58.38)},
	}
	svc := NewMatchService(repo)

	result, err := svc.AutoMatch(context.Background(), "base", 0, 0)
	if err != nil {
		t.Fatalf("AutoMatch: %v", err)
	}
	if len(result.Matches) != 1 || result.Matches[0].Report.ID != "good" {
		t.Fatalf("matches = %+v, want only the locatable candidate", result.Matches)
	}
	if result.RadiusKm != DefaultMatchRadiusKm {
		t.Fatalf("radius = %v, want default", result.RadiusKm)
	}
}

func TestAutoMatchRequiresBaseLocation(t *testing.T) {
	base := lostDogReport("base", "dog")
	base.Location = nil
	svc := NewMatchService(&stubMatchRepo{base: base})

	if _, err := svc.AutoMatch(context.Background(), "base", 10, 5); !errors.Is(err, ErrReportNotLocatable) {
		t.Fatalf("err = %v, want ErrReportNotLocatable", err)
	}
}
