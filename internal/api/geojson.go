package api

import (
	"strings"

	"github.com/ringnet/hazardcore/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func toGeoJSON(hazards []models.HazardRecord) FeatureCollection {
	features := make([]Feature, 0, len(hazards))

	for _, h := range hazards {
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{h.Location.Longitude, h.Location.Latitude},
			},
			Properties: map[string]any{
				"id":         h.ID,
				"type":       strings.ToLower(string(h.Type)),
				"title":      h.Title,
				"place":      h.Location.PlaceName,
				"magnitude":  h.Magnitude,
				"severity":   strings.ToLower(string(h.Severity)),
				"fatalities": h.Fatalities,
				"injuries":   h.Injuries,
				"source":     h.Source,
				"timestamp":  h.OccurredAt,
			},
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
