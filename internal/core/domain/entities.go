package domain

import (
	"strings"
	"time"
)

// Source tells where a cafe record came from.
type Source string

const (
	SourceOSM    Source = "osm"
	SourceCustom Source = "custom"
)

// Amenities are the facility flags shown on a cafe card.
type Amenities struct {
	Wifi            bool   `json:"wifi"`
	OutdoorSeating  bool   `json:"outdoor_seating"`
	Takeaway        bool   `json:"takeaway"`
	AirConditioning bool   `json:"air_conditioning"`
	Smoking         string `json:"smoking,omitempty"` // yes, no, outside, separated
}

// Cafe is a single venue on the map, either from OpenStreetMap or user-submitted.
type Cafe struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Location     GeoPoint   `json:"location"`
	Address      string     `json:"address,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Website      string     `json:"website,omitempty"`
	OpeningHours string     `json:"opening_hours,omitempty"`
	Cuisine      string     `json:"cuisine,omitempty"`
	Amenities    Amenities  `json:"amenities"`
	PriceRange   string     `json:"price_range,omitempty"`
	Description  string     `json:"description,omitempty"`
	Logo         string     `json:"logo,omitempty"`
	Photos       []string   `json:"photos,omitempty"`
	Source       Source     `json:"source"`
	SourceRef    string     `json:"source_ref,omitempty"` // OSM id a custom record was imported from
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	DistanceKm   *float64   `json:"distance_km,omitempty"` // computed field
}

// FallbackIDPrefix marks records from the built-in list served when the
// open geodata feed is unreachable.
const FallbackIDPrefix = "fallback-"

// IsFallback reports whether c came from the built-in list.
func (c *Cafe) IsFallback() bool {
	return strings.HasPrefix(c.ID, FallbackIDPrefix)
}

// MatchesQuery reports whether q is a case-insensitive substring of the
// cafe's name, address or cuisine. An empty query matches everything.
func (c *Cafe) MatchesQuery(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), q) ||
		strings.Contains(strings.ToLower(c.Address), q) ||
		strings.Contains(strings.ToLower(c.Cuisine), q)
}

// FilterCafes returns the cafes matching q, keeping input order.
func FilterCafes(cafes []Cafe, q string) []Cafe {
	if strings.TrimSpace(q) == "" {
		return cafes
	}
	out := make([]Cafe, 0, len(cafes))
	for i := range cafes {
		if cafes[i].MatchesQuery(q) {
			out = append(out, cafes[i])
		}
	}
	return out
}

// IssueType enumerates what a user can report about a cafe.
type IssueType string

const (
	IssueWrongInfo     IssueType = "wrong_info"
	IssueClosed        IssueType = "closed"
	IssueWrongLocation IssueType = "wrong_location"
	IssueMissingInfo   IssueType = "missing_info"
	IssueOther         IssueType = "other"
)

// Valid reports whether t is a known issue type.
func (t IssueType) Valid() bool {
	switch t {
	case IssueWrongInfo, IssueClosed, IssueWrongLocation, IssueMissingInfo, IssueOther:
		return true
	}
	return false
}

// IssueReport is a user's correction request. Immutable once submitted.
type IssueReport struct {
	CafeID       string    `json:"cafe_id"`
	CafeName     string    `json:"cafe_name"`
	Type         IssueType `json:"type"`
	Description  string    `json:"description"`
	SuggestedFix string    `json:"suggested_fix,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Route is a driving path between the user and a cafe.
type Route struct {
	Path        GeoLineString `json:"path"`
	DistanceKm  float64       `json:"distance_km"`
	DurationMin float64       `json:"duration_min"`
}

// VisitStats is a snapshot of the visit counters.
type VisitStats struct {
	Today int64  `json:"today"`
	Total int64  `json:"total"`
	Date  string `json:"date"`
}

// BulkResult summarises a bulk insert into the custom store.
type BulkResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}
