package models

import "time"

const (
	ReportTypeLost  = "lost"
	ReportTypeFound = "found"

	ReportStatusActive    = "active"
	ReportStatusResolved  = "resolved"
	ReportStatusCancelled = "cancelled"
)

// Report is a lost or found pet sighting. Location is stored as a WKT point
// but older rows may carry GeoJSON or a raw lat/lng object; Latitude and
// Longitude are resolved at read time and stay nil when the stored value is
// unparsable. A report without resolved coordinates never participates in
// distance-based queries.
type Report struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	ReporterID  string     `json:"reporter_id"`
	PetName     *string    `json:"pet_name"`
	Species     string     `json:"species"`
	Breed       *string    `json:"breed"`
	Color       *string    `json:"color"`
	Size        *string    `json:"size"`
	Description string     `json:"description"`
	PhotoURL    *string    `json:"photo_url"`
	Labels      []string   `json:"labels,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// NearbyReport annotates a report with its distance from the query point.
// Only reports with resolved coordinates ever appear as NearbyReport values.
type NearbyReport struct {
	Report
	DistanceMeters float64 `json:"distance_meters"`
}
