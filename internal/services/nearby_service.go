package services

import (
	"context"
	"log"
	"sort"

	"github.com/idkjulii/PetAlertBack/internal/geo"
	"github.com/idkjulii/PetAlertBack/internal/models"
)

// DefaultNearbyRadiusMeters applies when a query carries no radius.
const DefaultNearbyRadiusMeters = 5000.0

type NearbyQuery struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// NearbyResult is what Resolve always hands back: failure is a field, not an
// error return, so callers can tell "backend down" from "no matches".
type NearbyResult struct {
	Reports []models.NearbyReport `json:"reports"`
	Source  string                `json:"source"`
	Err     error                 `json:"-"`
}

type nearbyReportStore interface {
	SearchNearby(ctx context.Context, latitude, longitude, radiusMeters float64) ([]models.NearbyReport, error)
	ListActive(ctx context.Context) ([]models.Report, error)
}

// NearbyService resolves active reports around a point through an ordered
// chain of strategies: the index-accelerated database search first, then a
// bulk fetch filtered locally with the haversine distance, then nothing.
type NearbyService struct {
	reportRepo    nearbyReportStore
	defaultRadius float64
}

type nearbyStrategy struct {
	name string
	// fallbackOnEmpty marks a strategy whose empty result is not trusted
	// as "no matches" and falls through to the next one.
	fallbackOnEmpty bool
	run             func(ctx context.Context, query NearbyQuery) ([]models.NearbyReport, error)
}

// NewNearbyService builds the resolver. defaultRadius is the radius applied
// to queries that do not carry one; zero falls back to
// DefaultNearbyRadiusMeters.
func NewNearbyService(reportRepo nearbyReportStore, defaultRadius float64) *NearbyService {
	if defaultRadius <= 0 {
		defaultRadius = DefaultNearbyRadiusMeters
	}
	return &NearbyService{reportRepo: reportRepo, defaultRadius: defaultRadius}
}

// Resolve never fails to the caller. Each strategy is tried in order; an
// error or unusable result moves on to the next, and when all of them fail
// the result is empty with the last error attached.
func (s *NearbyService) Resolve(ctx context.Context, query NearbyQuery) NearbyResult {
	if query.RadiusMeters <= 0 {
		query.RadiusMeters = s.defaultRadius
	}

	strategies := []nearbyStrategy{
		{name: "database", fallbackOnEmpty: true, run: s.searchDatabase},
		{name: "local-filter", run: s.filterLocally},
	}

	var lastErr error
	for _, strategy := range strategies {
		reports, err := strategy.run(ctx, query)
		if err != nil {
			log.Printf("nearby: %s strategy failed: %v", strategy.name, err)
			lastErr = err
			continue
		}
		if len(reports) == 0 && strategy.fallbackOnEmpty {
			continue
		}
		return NearbyResult{Reports: normalizeNearby(reports, query), Source: strategy.name}
	}

	return NearbyResult{Reports: []models.NearbyReport{}, Source: "none", Err: lastErr}
}

func (s *NearbyService) searchDatabase(ctx context.Context, query NearbyQuery) ([]models.NearbyReport, error) {
	return s.reportRepo.SearchNearby(ctx, query.Latitude, query.Longitude, query.RadiusMeters)
}

func (s *NearbyService) filterLocally(ctx context.Context, query NearbyQuery) ([]models.NearbyReport, error) {
	reports, err := s.reportRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	nearby := make([]models.NearbyReport, 0, len(reports))
	for _, report := range reports {
		if report.Location == nil {
			continue
		}
		coords := geo.Extract(*report.Location)
		if coords == nil {
			continue
		}
		distance := geo.Distance(query.Latitude, query.Longitude, coords.Latitude, coords.Longitude)
		if distance > query.RadiusMeters {
			continue
		}

		report.Latitude = &coords.Latitude
		report.Longitude = &coords.Longitude
		nearby = append(nearby, models.NearbyReport{Report: report, DistanceMeters: distance})
	}
	return nearby, nil
}

// normalizeNearby enforces the result contract no matter which strategy
// produced the rows: resolved coordinates only, nothing beyond the radius,
// ascending by distance with the incoming (creation-time) order on ties.
func normalizeNearby(reports []models.NearbyReport, query NearbyQuery) []models.NearbyReport {
	kept := make([]models.NearbyReport, 0, len(reports))
	for _, report := range reports {
		if report.Latitude == nil || report.Longitude == nil {
			continue
		}
		if report.DistanceMeters > query.RadiusMeters {
			continue
		}
		kept = append(kept, report)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].DistanceMeters < kept[j].DistanceMeters
	})
	return kept
}
