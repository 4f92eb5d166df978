package sheets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

// Sheet cells come back loosely typed: numbers may be strings, booleans may
// be "TRUE" or "yes", lists may be comma separated. Every reader below takes
// a list of candidate column names because older sheets use camelCase.

func parseCafeRow(row map[string]any) (domain.Cafe, error) {
	id := cellString(row, "id")
	if id == "" {
		return domain.Cafe{}, errors.New("missing id")
	}
	name := cellString(row, "name")
	if name == "" {
		return domain.Cafe{}, fmt.Errorf("cafe %s: missing name", id)
	}
	lat, okLat := cellFloat(row, "lat", "latitude")
	lon, okLon := cellFloat(row, "lon", "lng", "longitude")
	if !okLat || !okLon {
		return domain.Cafe{}, fmt.Errorf("cafe %s: missing coordinates", id)
	}

	cafe := domain.Cafe{
		ID:           id,
		Name:         name,
		Location:     domain.GeoPoint{Lat: lat, Lon: lon},
		Address:      cellString(row, "address"),
		Phone:        cellString(row, "phone"),
		Website:      cellString(row, "website"),
		OpeningHours: cellString(row, "opening_hours", "openingHours"),
		Cuisine:      cellString(row, "cuisine"),
		Amenities: domain.Amenities{
			Wifi:            cellBool(row, "wifi"),
			OutdoorSeating:  cellBool(row, "outdoor_seating", "outdoorSeating"),
			Takeaway:        cellBool(row, "takeaway"),
			AirConditioning: cellBool(row, "air_conditioning", "airConditioning"),
			Smoking:         cellString(row, "smoking"),
		},
		PriceRange:  cellString(row, "price_range", "priceRange"),
		Description: cellString(row, "description"),
		Logo:        cellString(row, "logo"),
		Photos:      cellList(row, "photos"),
		Source:      domain.SourceCustom,
		SourceRef:   cellString(row, "source_ref", "sourceRef"),
		CreatedAt:   cellTime(row, "created_at", "createdAt", "timestamp"),
	}
	// Amenities may also arrive nested as they were submitted.
	if nested, ok := row["amenities"].(map[string]any); ok {
		cafe.Amenities.Wifi = cafe.Amenities.Wifi || cellBool(nested, "wifi")
		cafe.Amenities.OutdoorSeating = cafe.Amenities.OutdoorSeating || cellBool(nested, "outdoor_seating", "outdoorSeating")
		cafe.Amenities.Takeaway = cafe.Amenities.Takeaway || cellBool(nested, "takeaway")
		cafe.Amenities.AirConditioning = cafe.Amenities.AirConditioning || cellBool(nested, "air_conditioning", "airConditioning")
		if cafe.Amenities.Smoking == "" {
			cafe.Amenities.Smoking = cellString(nested, "smoking")
		}
	}
	return cafe, nil
}

func parseReportRow(row map[string]any) domain.IssueReport {
	r := domain.IssueReport{
		CafeID:       cellString(row, "cafe_id", "cafeId"),
		CafeName:     cellString(row, "cafe_name", "cafeName"),
		Type:         domain.IssueType(cellString(row, "type", "issue_type", "issueType")),
		Description:  cellString(row, "description"),
		SuggestedFix: cellString(row, "suggested_fix", "suggestedFix"),
	}
	if t := cellTime(row, "submitted_at", "submittedAt", "timestamp"); t != nil {
		r.SubmittedAt = *t
	}
	return r
}

func parseOverrideRow(row map[string]any) (domain.Override, error) {
	o := domain.Override{
		OriginalID:   cellString(row, "original_id", "originalId"),
		OriginalName: cellString(row, "original_name", "originalName"),
		Hidden:       cellBool(row, "hidden"),
		UpdatedAt:    cellTime(row, "updated_at", "updatedAt"),
	}
	if o.OriginalID == "" {
		return domain.Override{}, errors.New("missing original id")
	}

	var fields map[string]any
	switch v := row["overrides"].(type) {
	case map[string]any:
		fields = v
	case string:
		if s := strings.TrimSpace(v); s != "" {
			if err := json.Unmarshal([]byte(s), &fields); err != nil {
				return domain.Override{}, fmt.Errorf("override %s: bad overrides column: %w", o.OriginalID, err)
			}
		}
	case nil:
	default:
		return domain.Override{}, fmt.Errorf("override %s: overrides column has type %T", o.OriginalID, v)
	}
	o.CafePatch = patchFromCells(fields)
	return o, nil
}

// patchFromCells sets a patch field for every key that is present and not
// null, so an explicit "" clears the field.
func patchFromCells(m map[string]any) domain.CafePatch {
	var p domain.CafePatch
	str := func(keys ...string) *string {
		if !present(m, keys...) {
			return nil
		}
		s := cellString(m, keys...)
		return &s
	}
	boolean := func(keys ...string) *bool {
		if !present(m, keys...) {
			return nil
		}
		b := cellBool(m, keys...)
		return &b
	}
	float := func(keys ...string) *float64 {
		if !present(m, keys...) {
			return nil
		}
		f, ok := cellFloat(m, keys...)
		if !ok {
			return nil
		}
		return &f
	}

	p.Name = str("name")
	p.Lat = float("lat", "latitude")
	p.Lon = float("lon", "lng", "longitude")
	p.Address = str("address")
	p.Phone = str("phone")
	p.Website = str("website")
	p.OpeningHours = str("opening_hours", "openingHours")
	p.Cuisine = str("cuisine")
	p.Wifi = boolean("wifi")
	p.OutdoorSeating = boolean("outdoor_seating", "outdoorSeating")
	p.Takeaway = boolean("takeaway")
	p.AirConditioning = boolean("air_conditioning", "airConditioning")
	p.Smoking = str("smoking")
	p.PriceRange = str("price_range", "priceRange")
	p.Description = str("description")
	p.Logo = str("logo")
	if present(m, "photos") {
		photos := cellList(m, "photos")
		if photos == nil {
			photos = []string{}
		}
		p.Photos = &photos
	}
	return p
}

func present(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return true
		}
	}
	return false
}

func lookup(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func cellString(m map[string]any, keys ...string) string {
	return strings.TrimSpace(anyString(lookup(m, keys...)))
}

func anyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func cellFloat(m map[string]any, keys ...string) (float64, bool) {
	switch t := lookup(m, keys...).(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func cellBool(m map[string]any, keys ...string) bool {
	switch t := lookup(m, keys...).(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "ya":
			return true
		}
	}
	return false
}

func cellList(m map[string]any, keys ...string) []string {
	var out []string
	switch t := lookup(m, keys...).(type) {
	case []any:
		for _, v := range t {
			if s := strings.TrimSpace(anyString(v)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func cellTime(m map[string]any, keys ...string) *time.Time {
	s := cellString(m, keys...)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
