package domain

import (
	"fmt"
	"strings"
	"time"
)

// CafePatch is a sparse set of field replacements. A nil field is unset and
// leaves the base value alone; a non-nil field replaces it, even when it
// points at an empty value.
type CafePatch struct {
	Name            *string   `json:"name,omitempty"`
	Lat             *float64  `json:"lat,omitempty"`
	Lon             *float64  `json:"lon,omitempty"`
	Address         *string   `json:"address,omitempty"`
	Phone           *string   `json:"phone,omitempty"`
	Website         *string   `json:"website,omitempty"`
	OpeningHours    *string   `json:"opening_hours,omitempty"`
	Cuisine         *string   `json:"cuisine,omitempty"`
	Wifi            *bool     `json:"wifi,omitempty"`
	OutdoorSeating  *bool     `json:"outdoor_seating,omitempty"`
	Takeaway        *bool     `json:"takeaway,omitempty"`
	AirConditioning *bool     `json:"air_conditioning,omitempty"`
	Smoking         *string   `json:"smoking,omitempty"`
	PriceRange      *string   `json:"price_range,omitempty"`
	Description     *string   `json:"description,omitempty"`
	Logo            *string   `json:"logo,omitempty"`
	Photos          *[]string `json:"photos,omitempty"`
}

// IsEmpty reports whether no field is set.
func (p *CafePatch) IsEmpty() bool {
	return p.Name == nil && p.Lat == nil && p.Lon == nil && p.Address == nil &&
		p.Phone == nil && p.Website == nil && p.OpeningHours == nil && p.Cuisine == nil &&
		p.Wifi == nil && p.OutdoorSeating == nil && p.Takeaway == nil &&
		p.AirConditioning == nil && p.Smoking == nil && p.PriceRange == nil &&
		p.Description == nil && p.Logo == nil && p.Photos == nil
}

// Apply returns a copy of c with the set fields replaced. Identity and
// provenance are never touched.
func (p *CafePatch) Apply(c Cafe) Cafe {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	setStr(&c.Name, p.Name)
	if p.Lat != nil {
		c.Location.Lat = *p.Lat
	}
	if p.Lon != nil {
		c.Location.Lon = *p.Lon
	}
	setStr(&c.Address, p.Address)
	setStr(&c.Phone, p.Phone)
	setStr(&c.Website, p.Website)
	setStr(&c.OpeningHours, p.OpeningHours)
	setStr(&c.Cuisine, p.Cuisine)
	setBool(&c.Amenities.Wifi, p.Wifi)
	setBool(&c.Amenities.OutdoorSeating, p.OutdoorSeating)
	setBool(&c.Amenities.Takeaway, p.Takeaway)
	setBool(&c.Amenities.AirConditioning, p.AirConditioning)
	setStr(&c.Amenities.Smoking, p.Smoking)
	setStr(&c.PriceRange, p.PriceRange)
	setStr(&c.Description, p.Description)
	setStr(&c.Logo, p.Logo)
	if p.Photos != nil {
		c.Photos = append([]string(nil), (*p.Photos)...)
	} else if c.Photos != nil {
		c.Photos = append([]string(nil), c.Photos...)
	}
	return c
}

// Validate checks the values that are set.
func (p *CafePatch) Validate() error {
	var errs []string
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		errs = append(errs, "name must not be blank")
	}
	if p.Lat != nil && (*p.Lat < -90 || *p.Lat > 90) {
		errs = append(errs, "lat must be between -90 and 90")
	}
	if p.Lon != nil && (*p.Lon < -180 || *p.Lon > 180) {
		errs = append(errs, "lon must be between -180 and 180")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}

// Override patches or hides a cafe, keyed by the original record's id.
type Override struct {
	OriginalID   string `json:"original_id"`
	OriginalName string `json:"original_name"`
	CafePatch
	Hidden    bool       `json:"hidden"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Validate checks the override key and its patch.
func (o *Override) Validate() error {
	if strings.TrimSpace(o.OriginalID) == "" {
		return fmt.Errorf("%w: original_id is required", ErrValidation)
	}
	return o.CafePatch.Validate()
}

// CafeForm is the payload of a new user-submitted cafe.
type CafeForm struct {
	Name         string    `json:"name"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	Address      string    `json:"address,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Website      string    `json:"website,omitempty"`
	OpeningHours string    `json:"opening_hours,omitempty"`
	Cuisine      string    `json:"cuisine,omitempty"`
	Amenities    Amenities `json:"amenities"`
	PriceRange   string    `json:"price_range,omitempty"`
	Description  string    `json:"description,omitempty"`
	Logo         string    `json:"logo,omitempty"`
	Photos       []string  `json:"photos,omitempty"`
	SourceRef    string    `json:"source_ref,omitempty"`
}

// Validate checks the required fields of a submission.
func (f *CafeForm) Validate() error {
	var errs []string
	if strings.TrimSpace(f.Name) == "" {
		errs = append(errs, "name is required")
	}
	if f.Lat == 0 && f.Lon == 0 {
		errs = append(errs, "lat and lon are required")
	}
	if f.Lat < -90 || f.Lat > 90 {
		errs = append(errs, "lat must be between -90 and 90")
	}
	if f.Lon < -180 || f.Lon > 180 {
		errs = append(errs, "lon must be between -180 and 180")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}

// FormFromCafe builds a submission from an existing record, used by bulk import.
func FormFromCafe(c Cafe) CafeForm {
	return CafeForm{
		Name:         c.Name,
		Lat:          c.Location.Lat,
		Lon:          c.Location.Lon,
		Address:      c.Address,
		Phone:        c.Phone,
		Website:      c.Website,
		OpeningHours: c.OpeningHours,
		Cuisine:      c.Cuisine,
		Amenities:    c.Amenities,
		PriceRange:   c.PriceRange,
		Description:  c.Description,
		Logo:         c.Logo,
		Photos:       c.Photos,
		SourceRef:    c.ID,
	}
}
