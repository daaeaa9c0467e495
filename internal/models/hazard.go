package models

import (
	"fmt"
	"time"
)

type HazardType string

const (
	HazardTypeEarthquake HazardType = "EARTHQUAKE"
	HazardTypeFlood      HazardType = "FLOOD"
	HazardTypeHeatwave   HazardType = "HEATWAVE"
	HazardTypeTsunami    HazardType = "TSUNAMI"
	HazardTypeGeneric    HazardType = "GENERIC"
)

// HazardTypes lists every known type, in the order the stats API reports them.
var HazardTypes = []HazardType{
	HazardTypeEarthquake,
	HazardTypeFlood,
	HazardTypeHeatwave,
	HazardTypeTsunami,
	HazardTypeGeneric,
}

func ParseHazardType(s string) (HazardType, bool) {
	switch s {
	case "earthquake", "EARTHQUAKE":
		return HazardTypeEarthquake, true
	case "flood", "FLOOD":
		return HazardTypeFlood, true
	case "heatwave", "HEATWAVE":
		return HazardTypeHeatwave, true
	case "tsunami", "TSUNAMI":
		return HazardTypeTsunami, true
	case "generic", "GENERIC":
		return HazardTypeGeneric, true
	}
	return "", false
}

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityModerate Severity = "MODERATE"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "low", "LOW":
		return SeverityLow, true
	case "moderate", "MODERATE":
		return SeverityModerate, true
	case "high", "HIGH":
		return SeverityHigh, true
	case "critical", "CRITICAL":
		return SeverityCritical, true
	}
	return "", false
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	PlaceName string  `json:"place_name,omitempty"`
}

type HazardRecord struct {
	ID             string // source-prefixed, e.g. "usgs_ci12345"
	Type           HazardType
	SourceID       string // upstream identifier, unique per (Type, SourceID)
	Source         string // "usgs", "gdacs"
	Title          string
	Location       Location
	OccurredAt     time.Time
	Magnitude      float64 // type-specific scalar: Richter, gauge height, degC, wave height
	Severity       Severity
	Fatalities     int
	Injuries       int
	DamageEstimate float64 // USD
	Raw            []byte  // original payload for debugging
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidationError reports malformed hazard input. Records failing validation
// are never persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid hazard record: %s %s", e.Field, e.Reason)
}

func (h *HazardRecord) Validate() error {
	if h.Type == "" {
		return &ValidationError{Field: "type", Reason: "is required"}
	}
	if _, ok := ParseHazardType(string(h.Type)); !ok {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("%q is not a known hazard type", h.Type)}
	}
	if h.SourceID == "" {
		return &ValidationError{Field: "source_id", Reason: "is required"}
	}
	if h.Location.Latitude < -90 || h.Location.Latitude > 90 {
		return &ValidationError{Field: "latitude", Reason: fmt.Sprintf("%v out of range [-90, 90]", h.Location.Latitude)}
	}
	if h.Location.Longitude < -180 || h.Location.Longitude > 180 {
		return &ValidationError{Field: "longitude", Reason: fmt.Sprintf("%v out of range [-180, 180]", h.Location.Longitude)}
	}
	if h.OccurredAt.IsZero() {
		return &ValidationError{Field: "occurred_at", Reason: "is required"}
	}
	return nil
}

// SeverityFor classifies a record on its type-specific magnitude scale:
// Richter for earthquakes, wave height (m) for tsunamis, gauge height (m)
// for floods, peak temperature (degC) for heatwaves.
func SeverityFor(t HazardType, magnitude float64) Severity {
	switch t {
	case HazardTypeEarthquake:
		switch {
		case magnitude >= 7.0:
			return SeverityCritical
		case magnitude >= 6.0:
			return SeverityHigh
		case magnitude >= 5.0:
			return SeverityModerate
		}
	case HazardTypeTsunami:
		switch {
		case magnitude >= 3.0:
			return SeverityCritical
		case magnitude >= 1.0:
			return SeverityHigh
		case magnitude >= 0.5:
			return SeverityModerate
		}
	case HazardTypeFlood:
		switch {
		case magnitude >= 6.0:
			return SeverityCritical
		case magnitude >= 4.0:
			return SeverityHigh
		case magnitude >= 2.0:
			return SeverityModerate
		}
	case HazardTypeHeatwave:
		switch {
		case magnitude >= 45.0:
			return SeverityCritical
		case magnitude >= 40.0:
			return SeverityHigh
		case magnitude >= 35.0:
			return SeverityModerate
		}
	}
	return SeverityLow
}
