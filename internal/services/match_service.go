package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/idkjulii/PetAlertBack/internal/geo"
	"github.com/idkjulii/PetAlertBack/internal/models"
)

const (
	DefaultMatchRadiusKm = 10.0
	DefaultMatchTopK     = 5
)

var ErrReportNotLocatable = errors.New("report has no usable location")

// Match pairs a candidate report with how well it fits the base report.
type Match struct {
	Report       models.Report `json:"report"`
	DistanceKm   float64       `json:"distance_km"`
	LabelOverlap int           `json:"label_overlap"`
	Score        float64       `json:"score"`
}

type MatchResult struct {
	ReportID        string  `json:"report_id"`
	RadiusKm        float64 `json:"radius_km"`
	TotalCandidates int     `json:"total_candidates"`
	Matches         []Match `json:"matches"`
}

type matchReportStore interface {
	GetByID(ctx context.Context, reportID string) (*models.Report, error)
	ListMatchCandidates(ctx context.Context, reportType, species string) ([]models.Report, error)
}

// MatchService cross-references lost and found reports. A lost report is
// scored against active found reports of the same species and vice versa,
// rewarding shared photo labels and penalizing distance.
type MatchService struct {
	reports matchReportStore
}

func NewMatchService(reports matchReportStore) *MatchService {
	return &MatchService{reports: reports}
}

func (s *MatchService) AutoMatch(
	ctx context.Context,
	reportID string,
	radiusKm float64,
	topK int,
) (*MatchResult, error) {
	if radiusKm <= 0 {
		radiusKm = DefaultMatchRadiusKm
	}
	if topK <= 0 {
		topK = DefaultMatchTopK
	}

	base, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if base.Location == nil {
		return nil, ErrReportNotLocatable
	}
	origin := geo.Extract(*base.Location)
	if origin == nil {
		return nil, ErrReportNotLocatable
	}

	targetType := models.ReportTypeFound
	if base.Type == models.ReportTypeFound {
		targetType = models.ReportTypeLost
	}
	candidates, err := s.reports.ListMatchCandidates(ctx, targetType, base.Species)
	if err != nil {
		return nil, err
	}

	baseLabels := labelSet(base.Labels)
	matches := make([]Match, 0)
	for _, candidate := range candidates {
		if candidate.ID == base.ID || candidate.Location == nil {
			continue
		}
		coords := geo.Extract(*candidate.Location)
		if coords == nil {
			continue
		}
		distanceKm := geo.Distance(origin.Latitude, origin.Longitude, coords.Latitude, coords.Longitude) / 1000.0
		if distanceKm > radiusKm {
			continue
		}

		overlap := labelOverlap(baseLabels, candidate.Labels)
		candidate.Latitude = &coords.Latitude
		candidate.Longitude = &coords.Longitude
		matches = append(matches, Match{
			Report:       candidate,
			DistanceKm:   round2(distanceKm),
			LabelOverlap: overlap,
			Score:        round3(float64(overlap)*10 - distanceKm*0.2),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	result := &MatchResult{
		ReportID:        reportID,
		RadiusKm:        radiusKm,
		TotalCandidates: len(matches),
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}
	result.Matches = matches
	return result, nil
}

func labelSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		if label != "" {
			set[label] = struct{}{}
		}
	}
	return set
}

func labelOverlap(base map[string]struct{}, candidate []string) int {
	overlap := 0
	seen := make(map[string]struct{}, len(candidate))
	for _, label := range candidate {
		label = strings.ToLower(strings.TrimSpace(label))
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		if _, ok := base[label]; ok {
			overlap++
		}
	}
	return overlap
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
