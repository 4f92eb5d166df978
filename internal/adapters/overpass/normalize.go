package overpass

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

type response struct {
	Elements []element `json:"elements"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *center           `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type center struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

func parseResponse(body []byte) ([]domain.Cafe, error) {
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	cafes := make([]domain.Cafe, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		if cafe, ok := normalize(el); ok {
			cafes = append(cafes, cafe)
		}
	}
	return cafes, nil
}

// normalize maps a tagged element to a cafe. Elements without a name or
// without a resolvable coordinate are rejected.
func normalize(el element) (domain.Cafe, bool) {
	name := strings.TrimSpace(el.Tags["name"])
	if name == "" {
		return domain.Cafe{}, false
	}

	var loc domain.GeoPoint
	switch {
	case el.Lat != nil && el.Lon != nil:
		loc = domain.GeoPoint{Lat: *el.Lat, Lon: *el.Lon}
	case el.Center != nil && el.Center.Lat != nil && el.Center.Lon != nil:
		loc = domain.GeoPoint{Lat: *el.Center.Lat, Lon: *el.Center.Lon}
	default:
		return domain.Cafe{}, false
	}

	typ := el.Type
	if typ == "" {
		typ = "node"
	}

	cafe := domain.Cafe{
		ID:           fmt.Sprintf("osm-%s-%d", typ, el.ID),
		Name:         name,
		Location:     loc,
		Address:      BuildAddress(el.Tags),
		Phone:        firstTag(el.Tags, "phone", "contact:phone"),
		Website:      firstTag(el.Tags, "website", "contact:website", "url"),
		OpeningHours: el.Tags["opening_hours"],
		Cuisine:      el.Tags["cuisine"],
		Description:  el.Tags["description"],
		Logo:         el.Tags["logo"],
		Amenities: domain.Amenities{
			Wifi:            isWifi(el.Tags["internet_access"]),
			OutdoorSeating:  el.Tags["outdoor_seating"] == "yes",
			Takeaway:        el.Tags["takeaway"] == "yes" || el.Tags["takeaway"] == "only",
			AirConditioning: el.Tags["air_conditioning"] == "yes",
			Smoking:         el.Tags["smoking"],
		},
		Source: domain.SourceOSM,
	}
	if img := strings.TrimSpace(el.Tags["image"]); img != "" {
		cafe.Photos = []string{img}
	}
	return cafe, true
}

// BuildAddress joins street, house number, district and city with ", ",
// skipping the parts that are absent.
func BuildAddress(tags map[string]string) string {
	parts := []string{
		tags["addr:street"],
		tags["addr:housenumber"],
		firstTag(tags, "addr:district", "addr:suburb"),
		tags["addr:city"],
	}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return ""
}

func isWifi(v string) bool {
	switch strings.ToLower(v) {
	case "wlan", "yes", "wifi", "free":
		return true
	}
	return false
}
