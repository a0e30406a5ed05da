package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/idkjulii/PetAlertBack/internal/models"
	"github.com/idkjulii/PetAlertBack/internal/services"
)

type stubReportService struct {
	createResult *models.Report
	createErr    error
	getResult    *models.Report
	getErr       error
	listResult   []models.Report
	resolveErr   error

	lastReporterID string
	lastReportID   string
}

func (s *stubReportService) Create(_ context.Context, reporterID string, _ services.CreateReportRequest) (*models.Report, error) {
	s.lastReporterID = reporterID
	return s.createResult, s.createErr
}

func (s *stubReportService) Get(_ context.Context, reportID string) (*models.Report, error) {
	s.lastReportID = reportID
	return s.getResult, s.getErr
}

func (s *stubReportService) ListActive(context.Context) ([]models.Report, error) {
	return s.listResult, nil
}

func (s *stubReportService) ListMine(_ context.Context, reporterID string) ([]models.Report, error) {
	s.lastReporterID = reporterID
	return s.listResult, nil
}

func (s *stubReportService) Update(_ context.Context, actorID, reportID string, _ services.UpdateReportRequest) (*models.Report, error) {
	s.lastReporterID = actorID
	s.lastReportID = reportID
	return s.getResult, s.getErr
}

func (s *stubReportService) Resolve(_ context.Context, actorID, reportID string) (*models.Report, error) {
	s.lastReporterID = actorID
	s.lastReportID = reportID
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	return s.getResult, nil
}

func (s *stubReportService) Cancel(_ context.Context, actorID, reportID string) (*models.Report, error) {
	return s.Resolve(context.Background(), actorID, reportID)
}

type stubNearbyResolver struct {
	result    services.NearbyResult
	lastQuery services.NearbyQuery
}

func (s *stubNearbyResolver) Resolve(_ context.Context, query services.NearbyQuery) services.NearbyResult {
	s.lastQuery = query
	return s.result
}

type stubMatcher struct {
	result *services.MatchResult
	err    error

	lastReportID string
	lastRadiusKm float64
	lastTopK     int
}

func (s *stubMatcher) AutoMatch(_ context.Context, reportID string, radiusKm float64, topK int) (*services.MatchResult, error) {
	s.lastReportID = reportID
	s.lastRadiusKm = radiusKm
	s.lastTopK = topK
	return s.result, s.err
}

func reportTestApp(reports *stubReportService, nearby *stubNearbyResolver, matcher *stubMatcher) *fiber.App {
	handler := NewReportHandler(ReportServiceSet{
		Reports: reports,
		Nearby:  nearby,
		Matcher: matcher,
	})

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "user-42")
		return c.Next()
	})
	app.Post("/api/v1/reports", handler.Create)
	app.Get("/api/v1/reports", handler.ListActive)
	app.Get("/api/v1/reports/nearby", handler.Nearby)
	app.Get("/api/v1/reports/mine", handler.ListMine)
	app.Get("/api/v1/reports/:id", handler.Get)
	app.Patch("/api/v1/reports/:id", handler.Update)
	app.Post("/api/v1/reports/:id/resolve", handler.Resolve)
	app.Get("/api/v1/reports/:id/match", handler.AutoMatch)
	return app
}

func TestCreateReportEndpoint(t *testing.T) {
	reports := &stubReportService{
		createResult: &models.Report{ID: "report-1", Type: models.ReportTypeLost, ReporterID: "user-42"},
	}
	app := reportTestApp(reports, &stubNearbyResolver{}, &stubMatcher{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports",
		strings.NewReader(`{"type":"lost","species":"dog","description":"brown labrador"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if reports.lastReporterID != "user-42" {
		t.Fatalf("reporter = %q", reports.lastReporterID)
	}
}

func TestCreateReportInvalidInput(t *testing.T) {
	reports := &stubReportService{createErr: services.ErrInvalidInput}
	app := reportTestApp(reports, &stubNearbyResolver{}, &stubMatcher{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports",
		strings.NewReader(`{"type":"stolen"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestNearbyForwardsQueryAndReportsSource(t *testing.T) {
	lat, lng := -34.6, -58.38
	nearby := &stubNearbyResolver{
		result: services.NearbyResult{
			Reports: []models.NearbyReport{
				{Report: models.Report{ID: "report-1"}, DistanceMeters: 1200},
			},
			Source: "database",
		},
	}
	app := reportTestApp(&stubReportService{}, nearby, &stubMatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/nearby?lat=-34.6&lng=-58.38&radius=2000", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if nearby.lastQuery.Latitude != lat || nearby.lastQuery.Longitude != lng || nearbyRadius(nearby) != 2000 {
		t.Fatalf("query = %+v", nearby.lastQuery)
	}

	var body struct {
		Reports []models.NearbyReport `json:"reports"`
		Source  string                `json:"source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Source != "database" || len(body.Reports) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func nearbyRadius(s *stubNearbyResolver) float64 { return s.lastQuery.RadiusMeters }

func TestNearbyDegradedStillOK(t *testing.T) {
	nearby := &stubNearbyResolver{
		result: services.NearbyResult{
			Reports: []models.NearbyReport{},
			Source:  "none",
			Err:     context.DeadlineExceeded,
		},
	}
	app := reportTestApp(&stubReportService{}, nearby, &stubMatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/nearby?lat=-34.6&lng=-58.38", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("a degraded nearby lookup must still answer 200, got %d", resp.StatusCode)
	}
}

func TestNearbyRequiresCoordinates(t *testing.T) {
	app := reportTestApp(&stubReportService{}, &stubNearbyResolver{}, &stubMatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/nearby?lat=abc", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestResolveForbiddenForNonReporter(t *testing.T) {
	reports := &stubReportService{resolveErr: services.ErrForbidden}
	app := reportTestApp(reports, &stubNearbyResolver{}, &stubMatcher{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/report-1/resolve", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestAutoMatchForwardsParams(t *testing.T) {
	matcher := &stubMatcher{
		result: &services.MatchResult{ReportID: "report-1", RadiusKm: 15, Matches: []services.Match{}},
	}
	app := reportTestApp(&stubReportService{}, &stubNearbyResolver{}, matcher)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/report-1/match?radius_km=15&top_k=3", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if matcher.lastReportID != "report-1" || matcher.lastRadiusKm != 15 || matcher.lastTopK != 3 {
		t.Fatalf("params = %q %v %d", matcher.lastReportID, matcher.lastRadiusKm, matcher.lastTopK)
	}
}

func TestAutoMatchWithoutLocationIsBadRequest(t *testing.T) {
	matcher := &stubMatcher{err: services.ErrReportNotLocatable}
	app := reportTestApp(&stubReportService{}, &stubNearbyResolver{}, matcher)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/report-1/match", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
