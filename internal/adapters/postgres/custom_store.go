package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/kopimap/internal/core/domain"
)

// CustomStore implements ports.CustomCafeStore with pgx. It is the
// self-hosted alternative to the spreadsheet API.
type CustomStore struct {
	db *DB
}

// NewCustomStore creates a new CustomStore.
func NewCustomStore(db *DB) *CustomStore {
	return &CustomStore{db: db}
}

const cafeColumns = `id, name, lat, lon, address, phone, website, opening_hours, cuisine,
	wifi, outdoor_seating, takeaway, air_conditioning, smoking,
	price_range, description, logo, photos, COALESCE(source_ref, ''), created_at`

// Add inserts a new cafe with a generated id.
func (s *CustomStore) Add(ctx context.Context, f domain.CafeForm) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO custom_cafes (id, name, lat, lon, address, phone, website, opening_hours, cuisine,
			wifi, outdoor_seating, takeaway, air_conditioning, smoking,
			price_range, description, logo, photos, source_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NULLIF($19, ''))
	`, id, f.Name, f.Lat, f.Lon, f.Address, f.Phone, f.Website, f.OpeningHours, f.Cuisine,
		f.Amenities.Wifi, f.Amenities.OutdoorSeating, f.Amenities.Takeaway, f.Amenities.AirConditioning,
		f.Amenities.Smoking, f.PriceRange, f.Description, f.Logo, nonNil(f.Photos), f.SourceRef)
	if err != nil {
		return "", fmt.Errorf("insert custom cafe: %w", err)
	}
	return id, nil
}

// List returns every custom cafe, oldest first.
func (s *CustomStore) List(ctx context.Context) ([]domain.Cafe, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT `+cafeColumns+` FROM custom_cafes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query custom cafes: %w", err)
	}
	defer rows.Close()

	var cafes []domain.Cafe
	for rows.Next() {
		var (
			c       domain.Cafe
			created time.Time
		)
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Location.Lat, &c.Location.Lon, &c.Address, &c.Phone, &c.Website,
			&c.OpeningHours, &c.Cuisine,
			&c.Amenities.Wifi, &c.Amenities.OutdoorSeating, &c.Amenities.Takeaway,
			&c.Amenities.AirConditioning, &c.Amenities.Smoking,
			&c.PriceRange, &c.Description, &c.Logo, &c.Photos, &c.SourceRef, &created,
		); err != nil {
			return nil, fmt.Errorf("scan custom cafe: %w", err)
		}
		c.Source = domain.SourceCustom
		c.CreatedAt = &created
		if len(c.Photos) == 0 {
			c.Photos = nil
		}
		cafes = append(cafes, c)
	}
	return cafes, rows.Err()
}

// Update sets the fields present in patch. Absent fields are passed as NULL
// and kept by COALESCE.
func (s *CustomStore) Update(ctx context.Context, id string, p domain.CafePatch) error {
	var photos []string
	if p.Photos != nil {
		photos = nonNil(*p.Photos)
	}
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE custom_cafes SET
			name             = COALESCE($2, name),
			lat              = COALESCE($3, lat),
			lon              = COALESCE($4, lon),
			address          = COALESCE($5, address),
			phone            = COALESCE($6, phone),
			website          = COALESCE($7, website),
			opening_hours    = COALESCE($8, opening_hours),
			cuisine          = COALESCE($9, cuisine),
			wifi             = COALESCE($10, wifi),
			outdoor_seating  = COALESCE($11, outdoor_seating),
			takeaway         = COALESCE($12, takeaway),
			air_conditioning = COALESCE($13, air_conditioning),
			smoking          = COALESCE($14, smoking),
			price_range      = COALESCE($15, price_range),
			description      = COALESCE($16, description),
			logo             = COALESCE($17, logo),
			photos           = COALESCE($18, photos),
			updated_at       = now()
		WHERE id = $1
	`, id, p.Name, p.Lat, p.Lon, p.Address, p.Phone, p.Website, p.OpeningHours, p.Cuisine,
		p.Wifi, p.OutdoorSeating, p.Takeaway, p.AirConditioning, p.Smoking,
		p.PriceRange, p.Description, p.Logo, photos)
	if err != nil {
		return fmt.Errorf("update custom cafe %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("custom cafe %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a custom cafe.
func (s *CustomStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM custom_cafes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete custom cafe %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("custom cafe %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SubmitIssueReport appends a report.
func (s *CustomStore) SubmitIssueReport(ctx context.Context, r domain.IssueReport) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO issue_reports (cafe_id, cafe_name, type, description, suggested_fix, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.CafeID, r.CafeName, string(r.Type), r.Description, r.SuggestedFix, r.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert issue report: %w", err)
	}
	return nil
}

// ListIssueReports returns reports, newest first.
func (s *CustomStore) ListIssueReports(ctx context.Context) ([]domain.IssueReport, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT cafe_id, cafe_name, type, description, suggested_fix, submitted_at
		FROM issue_reports ORDER BY submitted_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query issue reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.IssueReport
	for rows.Next() {
		var (
			r   domain.IssueReport
			typ string
		)
		if err := rows.Scan(&r.CafeID, &r.CafeName, &typ, &r.Description, &r.SuggestedFix, &r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan issue report: %w", err)
		}
		r.Type = domain.IssueType(typ)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// SaveOverride creates or replaces the override for o.OriginalID.
func (s *CustomStore) SaveOverride(ctx context.Context, o domain.Override) error {
	patch, err := json.Marshal(o.CafePatch)
	if err != nil {
		return fmt.Errorf("encode override patch: %w", err)
	}
	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO cafe_overrides (original_id, original_name, patch, hidden, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (original_id) DO UPDATE
		SET original_name = EXCLUDED.original_name, patch = EXCLUDED.patch,
		    hidden = EXCLUDED.hidden, updated_at = now()
	`, o.OriginalID, o.OriginalName, patch, o.Hidden)
	if err != nil {
		return fmt.Errorf("upsert override %s: %w", o.OriginalID, err)
	}
	return nil
}

// ListOverrides returns every override keyed by original id.
func (s *CustomStore) ListOverrides(ctx context.Context) (map[string]domain.Override, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT original_id, original_name, patch, hidden, updated_at FROM cafe_overrides
	`)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Override)
	for rows.Next() {
		var (
			o       domain.Override
			patch   []byte
			updated time.Time
		)
		if err := rows.Scan(&o.OriginalID, &o.OriginalName, &patch, &o.Hidden, &updated); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		if err := json.Unmarshal(patch, &o.CafePatch); err != nil {
			return nil, fmt.Errorf("decode override %s: %w", o.OriginalID, err)
		}
		o.UpdatedAt = &updated
		out[o.OriginalID] = o
	}
	return out, rows.Err()
}

// DeleteOverride removes the override for originalID.
func (s *CustomStore) DeleteOverride(ctx context.Context, originalID string) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM cafe_overrides WHERE original_id = $1`, originalID)
	if err != nil {
		return fmt.Errorf("delete override %s: %w", originalID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("override %s: %w", originalID, domain.ErrNotFound)
	}
	return nil
}

// BulkAdd inserts cafes in one batch. Rows whose source_ref already exists
// are skipped.
func (s *CustomStore) BulkAdd(ctx context.Context, cafes []domain.Cafe) (domain.BulkResult, error) {
	res := domain.BulkResult{Total: len(cafes)}
	if len(cafes) == 0 {
		return res, nil
	}

	batch := &pgx.Batch{}
	for _, c := range cafes {
		f := domain.FormFromCafe(c)
		batch.Queue(`
			INSERT INTO custom_cafes (id, name, lat, lon, address, phone, website, opening_hours, cuisine,
				wifi, outdoor_seating, takeaway, air_conditioning, smoking,
				price_range, description, logo, photos, source_ref)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NULLIF($19, ''))
			ON CONFLICT (source_ref) DO NOTHING
		`, uuid.NewString(), f.Name, f.Lat, f.Lon, f.Address, f.Phone, f.Website, f.OpeningHours, f.Cuisine,
			f.Amenities.Wifi, f.Amenities.OutdoorSeating, f.Amenities.Takeaway, f.Amenities.AirConditioning,
			f.Amenities.Smoking, f.PriceRange, f.Description, f.Logo, nonNil(f.Photos), f.SourceRef)
	}

	br := s.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range cafes {
		tag, err := br.Exec()
		if err != nil {
			return res, fmt.Errorf("batch exec: %w", err)
		}
		if tag.RowsAffected() == 1 {
			res.Added++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

// Ready reports whether the backing database answers.
func (s *CustomStore) Ready(ctx context.Context) error {
	if s.db == nil {
		return errors.New("no database")
	}
	return s.db.Ping(ctx)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
