// Package geo holds the coordinate handling shared by the report and nearby
// code paths: extraction of lat/lng pairs from the location encodings that
// show up in stored rows, and great-circle distance between two points.
package geo

import (
	"encoding/json"
	"log"
	"math"
	"strconv"
	"strings"
)

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the haversine great-circle distance in meters between two
// latitude/longitude pairs expressed in degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Extract normalizes the location encodings seen on stored rows into a
// coordinate pair. Recognized shapes, first match wins:
//
//  1. WKT point string "POINT(lon lat)", optionally prefixed "SRID=...;"
//  2. GeoJSON point {"type":"Point","coordinates":[lon,lat]}
//  3. an object carrying numeric latitude/longitude fields
//
// Anything else, including parse failures, yields nil. Extract never panics;
// a report without a usable location simply has no coordinates.
func Extract(location any) *Coordinates {
	switch value := location.(type) {
	case nil:
		return nil
	case string:
		return extractFromString(value)
	case []byte:
		return extractFromString(string(value))
	case json.RawMessage:
		return extractFromString(string(value))
	case map[string]any:
		return extractFromMap(value)
	case Coordinates:
		return &Coordinates{Latitude: value.Latitude, Longitude: value.Longitude}
	case *Coordinates:
		if value == nil {
			return nil
		}
		return &Coordinates{Latitude: value.Latitude, Longitude: value.Longitude}
	default:
		log.Printf("geo: unrecognized location shape %T", location)
		return nil
	}
}

func extractFromString(raw string) *Coordinates {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if strings.Contains(trimmed, "POINT(") {
		return parseWKTPoint(trimmed)
	}

	// Rows fetched through a JSON boundary carry GeoJSON or a plain
	// lat/lng object as text.
	if strings.HasPrefix(trimmed, "{") {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			log.Printf("geo: malformed location json: %v", err)
			return nil
		}
		return extractFromMap(decoded)
	}

	log.Printf("geo: unrecognized location string %q", truncate(trimmed, 60))
	return nil
}

func parseWKTPoint(raw string) *Coordinates {
	_, rest, ok := strings.Cut(raw, "POINT(")
	if !ok {
		return nil
	}
	inner, _, ok := strings.Cut(rest, ")")
	if !ok {
		log.Printf("geo: WKT point missing closing paren in %q", truncate(raw, 60))
		return nil
	}

	fields := strings.Fields(inner)
	if len(fields) != 2 {
		log.Printf("geo: WKT point expects two tokens, got %d", len(fields))
		return nil
	}

	lon, errLon := strconv.ParseFloat(fields[0], 64)
	lat, errLat := strconv.ParseFloat(fields[1], 64)
	if errLon != nil || errLat != nil {
		log.Printf("geo: non-numeric WKT point tokens in %q", truncate(raw, 60))
		return nil
	}

	return &Coordinates{Latitude: lat, Longitude: lon}
}

func extractFromMap(value map[string]any) *Coordinates {
	if typ, _ := value["type"].(string); typ == "Point" {
		coords, ok := value["coordinates"].([]any)
		if !ok || len(coords) < 2 {
			log.Printf("geo: GeoJSON point without usable coordinates")
			return nil
		}
		lon, okLon := toFloat(coords[0])
		lat, okLat := toFloat(coords[1])
		if !okLon || !okLat {
			log.Printf("geo: non-numeric GeoJSON coordinates")
			return nil
		}
		return &Coordinates{Latitude: lat, Longitude: lon}
	}

	lat, okLat := toFloat(value["latitude"])
	lon, okLon := toFloat(value["longitude"])
	if okLat && okLon {
		return &Coordinates{Latitude: lat, Longitude: lon}
	}

	log.Printf("geo: unrecognized location object")
	return nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

// WKTPoint renders a coordinate pair in the storage encoding used on writes.
func WKTPoint(latitude, longitude float64) string {
	return "POINT(" +
		strconv.FormatFloat(longitude, 'f', -1, 64) + " " +
		strconv.FormatFloat(latitude, 'f', -1, 64) + ")"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
