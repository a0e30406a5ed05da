package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/idkjulii/PetAlertBack/internal/models"
)

type CreateReportInput struct {
	Type        string
	ReporterID  string
	PetName     *string
	Species     string
	Breed       *string
	Color       *string
	Size        *string
	Description string
	PhotoURL    *string
	Location    *string
}

type UpdateReportInput struct {
	PetName     *string
	Breed       *string
	Color       *string
	Size        *string
	Description *string
	PhotoURL    *string
	Location    *string
}

type ReportRepository struct {
	db DBTX
}

func NewReportRepository(db DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, type, reporter_id, pet_name, species, breed, color, size,
	description, photo_url, labels, location, status, created_at, resolved_at`

func (r *ReportRepository) Create(ctx context.Context, input CreateReportInput) (*models.Report, error) {
	query := `
		INSERT INTO reports (id, type, reporter_id, pet_name, species, breed, color, size, description, photo_url, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + reportColumns

	return r.scanReport(r.db.QueryRow(
		ctx,
		query,
		uuid.NewString(),
		input.Type,
		input.ReporterID,
		input.PetName,
		input.Species,
		input.Breed,
		input.Color,
		input.Size,
		input.Description,
		input.PhotoURL,
		input.Location,
	))
}

func (r *ReportRepository) GetByID(ctx context.Context, reportID string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	return r.scanReport(r.db.QueryRow(ctx, query, reportID))
}

// ListActive returns every active report, newest first. The stable creation
// order is what distance ties fall back to after local filtering.
func (r *ReportRepository) ListActive(ctx context.Context) ([]models.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE status = 'active'
		ORDER BY created_at DESC, id DESC
	`
	return r.list(ctx, query)
}

func (r *ReportRepository) ListByReporter(ctx context.Context, reporterID string) ([]models.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE reporter_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.list(ctx, query, reporterID)
}

// SearchNearby runs the index-accelerated nearby_reports SQL function. It
// fails when the function is missing from the schema; callers fall back to
// local filtering in that case.
func (r *ReportRepository) SearchNearby(
	ctx context.Context,
	latitude float64,
	longitude float64,
	radiusMeters float64,
) ([]models.NearbyReport, error) {
	query := `
		SELECT id, type, reporter_id, pet_name, species, breed, color, size,
			   description, photo_url, labels, location, status, created_at, resolved_at,
			   latitude, longitude, distance_meters
		FROM nearby_reports($1, $2, $3)
	`
	rows, err := r.db.Query(ctx, query, latitude, longitude, radiusMeters)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]models.NearbyReport, 0)
	for rows.Next() {
		var report models.NearbyReport
		if err := rows.Scan(
			&report.ID,
			&report.Type,
			&report.ReporterID,
			&report.PetName,
			&report.Species,
			&report.Breed,
			&report.Color,
			&report.Size,
			&report.Description,
			&report.PhotoURL,
			&report.Labels,
			&report.Location,
			&report.Status,
			&report.CreatedAt,
			&report.ResolvedAt,
			&report.Latitude,
			&report.Longitude,
			&report.DistanceMeters,
		); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *ReportRepository) Update(ctx context.Context, reportID string, input UpdateReportInput) (*models.Report, error) {
	query := `
		UPDATE reports
		SET pet_name = COALESCE($1, pet_name),
			breed = COALESCE($2, breed),
			color = COALESCE($3, color),
			size = COALESCE($4, size),
			description = COALESCE($5, description),
			photo_url = COALESCE($6, photo_url),
			location = COALESCE($7, location)
		WHERE id = $8
		RETURNING ` + reportColumns

	return r.scanReport(r.db.QueryRow(
		ctx,
		query,
		input.PetName,
		input.Breed,
		input.Color,
		input.Size,
		input.Description,
		input.PhotoURL,
		input.Location,
		reportID,
	))
}

func (r *ReportRepository) UpdateStatus(ctx context.Context, reportID string, status string) (*models.Report, error) {
	query := `
		UPDATE reports
		SET status = $1,
			resolved_at = CASE WHEN $1 = 'resolved' THEN NOW() ELSE resolved_at END
		WHERE id = $2
		RETURNING ` + reportColumns
	return r.scanReport(r.db.QueryRow(ctx, query, status, reportID))
}

func (r *ReportRepository) UpdatePhoto(ctx context.Context, reportID string, photoURL string) error {
	_, err := r.db.Exec(ctx, `UPDATE reports SET photo_url = $1 WHERE id = $2`, photoURL, reportID)
	return err
}

func (r *ReportRepository) SaveLabels(ctx context.Context, reportID string, labels []string) error {
	_, err := r.db.Exec(ctx, `UPDATE reports SET labels = $1 WHERE id = $2`, labels, reportID)
	return err
}

// ListMatchCandidates returns the active reports of the opposite kind for the
// same species, the pool auto-matching scores against.
func (r *ReportRepository) ListMatchCandidates(ctx context.Context, reportType, species string) ([]models.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE type = $1 AND species = $2 AND status = 'active'
		ORDER BY created_at DESC, id DESC
	`
	return r.list(ctx, query, reportType, species)
}

func (r *ReportRepository) list(ctx context.Context, query string, args ...any) ([]models.Report, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]models.Report, 0)
	for rows.Next() {
		var report models.Report
		if err := rows.Scan(
			&report.ID,
			&report.Type,
			&report.ReporterID,
			&report.PetName,
			&report.Species,
			&report.Breed,
			&report.Color,
			&report.Size,
			&report.Description,
			&report.PhotoURL,
			&report.Labels,
			&report.Location,
			&report.Status,
			&report.CreatedAt,
			&report.ResolvedAt,
		); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *ReportRepository) scanReport(row interface{ Scan(dest ...any) error }) (*models.Report, error) {
	var report models.Report
	err := row.Scan(
		&report.ID,
		&report.Type,
		&report.ReporterID,
		&report.PetName,
		&report.Species,
		&report.Breed,
		&report.Color,
		&report.Size,
		&report.Description,
		&report.PhotoURL,
		&report.Labels,
		&report.Location,
		&report.Status,
		&report.CreatedAt,
		&report.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &report, nil
}
